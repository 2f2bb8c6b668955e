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

// Package models defines the core data structures shared across PackWatch.
package models

import (
	"errors"
	"fmt"
)

// ImageQuality classifies how usable a delivery photo is for analysis
type ImageQuality string

const (
	QualityHigh   ImageQuality = "high"
	QualityMedium ImageQuality = "medium"
	QualityLow    ImageQuality = "low"
)

// ViolationType identifies where branding was found
type ViolationType string

const (
	ViolationBox  ViolationType = "box"
	ViolationTape ViolationType = "tape"
)

// BoundingBox is a normalized rectangle [x1, y1, x2, y2] with coordinates
// expressed as fractions of image width/height in [0, 1].
type BoundingBox [4]float64

// Validate checks coordinate ranges and corner ordering
func (b BoundingBox) Validate() error {
	for i, v := range b {
		if v < 0 || v > 1 {
			return fmt.Errorf("bounding box coordinate %d out of range: %v", i, v)
		}
	}
	if b[0] >= b[2] {
		return fmt.Errorf("bounding box x1 must be less than x2: %v >= %v", b[0], b[2])
	}
	if b[1] >= b[3] {
		return fmt.Errorf("bounding box y1 must be less than y2: %v >= %v", b[1], b[3])
	}
	return nil
}

// Violation is a single detected instance of non-compliant branding
type Violation struct {
	Type          ViolationType `json:"type"`
	Description   string        `json:"description"`
	BrandDetected string        `json:"brand_detected"`
	BoundingBox   BoundingBox   `json:"bounding_box"`
	Confidence    float64       `json:"confidence"`
}

// Validate checks the violation against the schema invariants
func (v *Violation) Validate() error {
	if v.Type != ViolationBox && v.Type != ViolationTape {
		return fmt.Errorf("violation type must be box or tape, got %q", v.Type)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("violation confidence out of range: %v", v.Confidence)
	}
	if err := v.BoundingBox.Validate(); err != nil {
		return fmt.Errorf("violation bounding box: %w", err)
	}
	return nil
}

// ComplianceReport is the model's judgment for one delivery photo. It is
// created fresh per image and carries no state beyond a single check.
type ComplianceReport struct {
	ShippingBoxDetected bool         `json:"shipping_box_detected"`
	BoxBoundingBox      *BoundingBox `json:"box_bounding_box,omitempty"`
	ComplianceScore     int          `json:"compliance_score"`
	IsCompliant         bool         `json:"is_compliant"`
	Violations          []Violation  `json:"violations"`
	ImageQuality        ImageQuality `json:"image_quality"`
	Summary             string       `json:"summary"`
}

// RequiredReportFields lists the JSON keys a model reply must contain.
// box_bounding_box is optional since it is only present when a box was found.
var RequiredReportFields = []string{
	"shipping_box_detected",
	"compliance_score",
	"is_compliant",
	"violations",
	"image_quality",
	"summary",
}

// Validate enforces the hard schema invariants: score range, quality enum,
// bounding box geometry and per-violation rules. Consistency between the
// score, the compliance flag and the violation list is a soft rule, see
// ConsistencyWarnings.
func (r *ComplianceReport) Validate() error {
	if r == nil {
		return errors.New("report is nil")
	}
	if r.ComplianceScore < 0 || r.ComplianceScore > 100 {
		return fmt.Errorf("compliance_score out of range: %d", r.ComplianceScore)
	}
	switch r.ImageQuality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("image_quality must be high, medium or low, got %q", r.ImageQuality)
	}
	if r.BoxBoundingBox != nil {
		if err := r.BoxBoundingBox.Validate(); err != nil {
			return fmt.Errorf("box_bounding_box: %w", err)
		}
	}
	for i := range r.Violations {
		if err := r.Violations[i].Validate(); err != nil {
			return fmt.Errorf("violations[%d]: %w", i, err)
		}
	}
	return nil
}

// ConsistencyWarnings flags reports whose fields disagree with each other.
// The model's literal judgment is trusted as-is and never corrected; these
// warnings exist so callers can surface suspicious verdicts instead of
// silently accepting them.
func (r *ComplianceReport) ConsistencyWarnings(threshold int) []string {
	var warnings []string
	if len(r.Violations) > 0 && r.IsCompliant {
		warnings = append(warnings, fmt.Sprintf(
			"report marked compliant despite %d violations", len(r.Violations)))
	}
	if len(r.Violations) == 0 && !r.IsCompliant {
		warnings = append(warnings, "report marked non-compliant with no violations listed")
	}
	if r.ComplianceScore < threshold && r.IsCompliant {
		warnings = append(warnings, fmt.Sprintf(
			"compliance_score %d below threshold %d but report marked compliant",
			r.ComplianceScore, threshold))
	}
	if r.ComplianceScore >= threshold && !r.IsCompliant && len(r.Violations) == 0 {
		warnings = append(warnings, fmt.Sprintf(
			"compliance_score %d above threshold %d but report marked non-compliant",
			r.ComplianceScore, threshold))
	}
	return warnings
}
