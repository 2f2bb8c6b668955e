// Copyright 2025 PackWatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checker

// compliancePrompt is the fixed instruction sent with every delivery photo.
// The entire judgment lives in this text plus the model's reply; the checker
// adds no scoring of its own.
const compliancePrompt = `Analyze this delivery package photo for compliance with the following rules:
1. First identify the shipping box in the image. Ignore the background and any surrounding objects.
2. Examine all visible sides of the box and all packaging tape.
3. The package is compliant only if it is plain brown cardboard with no visible retail branding (like Walmart, Target, Amazon, etc.) on the box or the tape.
4. Report one violation entry per distinct branding instance found.

For your assessment:
1. Report whether a shipping box is visible, and if so its bounding box [x1, y1, x2, y2] (coordinates normalized from 0-1 as ratios of image dimensions).
2. Provide a compliance score from 0-100 (100 being fully compliant).
3. For each violation, identify what is non-compliant (box or tape), describe it, name the brand if recognizable, give its bounding box in the same normalized form, and your confidence from 0.0-1.0.
4. Rate the overall image quality as high, medium or low.

Format your response as a JSON object with these fields:
{
    "shipping_box_detected": boolean,
    "box_bounding_box": [x1, y1, x2, y2],
    "compliance_score": int,
    "is_compliant": boolean,
    "violations": [
        {
            "type": "box|tape",
            "description": "string",
            "brand_detected": "string",
            "bounding_box": [x1, y1, x2, y2],
            "confidence": float
        }
    ],
    "image_quality": "high|medium|low",
    "summary": "string"
}

Omit box_bounding_box if no shipping box is visible. Return ONLY the JSON object, nothing else.`
