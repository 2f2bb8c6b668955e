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

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/golang/freetype"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/packwatch/packwatch/pkg/models"
)

var (
	boxColor  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	tapeColor = color.RGBA{R: 235, G: 200, B: 30, A: 255}
)

const (
	outlineWidth = 3
	labelSize    = 14
)

// Annotate draws each violation's bounding box onto the photo, red for box
// branding and yellow for tape branding, with a "type: brand" label above,
// and returns the result as PNG.
func Annotate(data []byte, violations []models.Violation) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load label font: %w", err)
	}
	ft := freetype.NewContext()
	ft.SetFont(font)
	ft.SetFontSize(labelSize)
	ft.SetClip(bounds)
	ft.SetDst(canvas)

	w, h := bounds.Dx(), bounds.Dy()
	for _, v := range violations {
		if err := v.BoundingBox.Validate(); err != nil {
			continue
		}
		c := boxColor
		if v.Type == models.ViolationTape {
			c = tapeColor
		}

		x1 := bounds.Min.X + int(v.BoundingBox[0]*float64(w))
		y1 := bounds.Min.Y + int(v.BoundingBox[1]*float64(h))
		x2 := bounds.Min.X + int(v.BoundingBox[2]*float64(w))
		y2 := bounds.Min.Y + int(v.BoundingBox[3]*float64(h))
		drawRect(canvas, x1, y1, x2, y2, c)

		label := string(v.Type)
		if v.BrandDetected != "" {
			label = fmt.Sprintf("%s: %s", v.Type, v.BrandDetected)
		}
		labelY := y1 - 5
		if labelY < bounds.Min.Y+labelSize {
			labelY = y1 + labelSize + outlineWidth
		}
		ft.SetSrc(image.NewUniform(c))
		if _, err := ft.DrawString(label, freetype.Pt(x1, labelY)); err != nil {
			return nil, fmt.Errorf("failed to draw label: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	for t := 0; t < outlineWidth; t++ {
		for x := x1; x <= x2; x++ {
			img.Set(x, y1+t, c)
			img.Set(x, y2-t, c)
		}
		for y := y1; y <= y2; y++ {
			img.Set(x1+t, y, c)
			img.Set(x2-t, y, c)
		}
	}
}
