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

// Package imaging prepares delivery photos before they are sent to a model
// provider: local quality assessment, downscaling of oversized images and
// annotation of detected violations.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/packwatch/packwatch/pkg/models"
)

// QualityAssessment captures the local sharpness, contrast and brightness
// measurements behind a quality classification.
type QualityAssessment struct {
	Quality    models.ImageQuality
	Sharpness  float64
	Contrast   float64
	Brightness float64
}

// AssessQuality classifies how usable a photo is for branding analysis.
// Sharpness is the variance of a Laplacian filter over the grayscale image,
// contrast the grayscale range, brightness the grayscale mean.
func AssessQuality(data []byte) (*QualityAssessment, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := grayscale(img)
	sharpness := laplacianVariance(gray)
	minVal, maxVal, mean := grayStats(gray)
	contrast := maxVal - minVal

	assessment := &QualityAssessment{
		Sharpness:  sharpness,
		Contrast:   contrast,
		Brightness: mean,
	}
	switch {
	case sharpness > 100 && contrast > 80 && mean > 50 && mean < 200:
		assessment.Quality = models.QualityHigh
	case sharpness > 50 && contrast > 40 && mean > 30 && mean < 220:
		assessment.Quality = models.QualityMedium
	default:
		assessment.Quality = models.QualityLow
	}
	return assessment, nil
}

type grayImage struct {
	pix  []float64
	w, h int
}

func grayscale(img image.Image) *grayImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	g := &grayImage{pix: make([]float64, w*h), w: w, h: h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma, scaled to 0-255
			g.pix[y*w+x] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)) / 257.0
		}
	}
	return g
}

func grayStats(g *grayImage) (minVal, maxVal, mean float64) {
	if len(g.pix) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal = g.pix[0], g.pix[0]
	var sum float64
	for _, v := range g.pix {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += v
	}
	return minVal, maxVal, sum / float64(len(g.pix))
}

// laplacianVariance applies the 4-neighbor Laplacian kernel and returns the
// variance of the response, a standard focus measure.
func laplacianVariance(g *grayImage) float64 {
	if g.w < 3 || g.h < 3 {
		return 0
	}
	responses := make([]float64, 0, (g.w-2)*(g.h-2))
	var sum float64
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			v := -4*g.pix[y*g.w+x] +
				g.pix[(y-1)*g.w+x] + g.pix[(y+1)*g.w+x] +
				g.pix[y*g.w+x-1] + g.pix[y*g.w+x+1]
			responses = append(responses, v)
			sum += v
		}
	}
	mean := sum / float64(len(responses))
	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(responses))
}
