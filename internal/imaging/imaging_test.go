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
	"image"
	"image/color"
	"image/png"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/packwatch/packwatch/pkg/models"
)

func TestImaging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Imaging Suite")
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// uniformImage is flat gray: zero contrast, zero sharpness
func uniformImage(w, h int, v uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return encodePNG(img)
}

// checkerboardImage alternates black and white pixels: maximal contrast and
// very high Laplacian response
func checkerboardImage(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{235, 235, 235, 255})
			} else {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			}
		}
	}
	return encodePNG(img)
}

var _ = Describe("AssessQuality", func() {
	It("should rate a flat featureless image low", func() {
		a, err := AssessQuality(uniformImage(64, 64, 128))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Quality).To(Equal(models.QualityLow))
		Expect(a.Contrast).To(BeNumerically("~", 0, 1))
	})

	It("should rate a dark image low", func() {
		a, err := AssessQuality(uniformImage(64, 64, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Quality).To(Equal(models.QualityLow))
		Expect(a.Brightness).To(BeNumerically("<", 30))
	})

	It("should rate a sharp high-contrast image high", func() {
		a, err := AssessQuality(checkerboardImage(64, 64))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Quality).To(Equal(models.QualityHigh))
		Expect(a.Sharpness).To(BeNumerically(">", 100))
	})

	It("should fail on non-image data", func() {
		_, err := AssessQuality([]byte("not an image"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Normalize", func() {
	It("should pass through images within the size limit", func() {
		original := uniformImage(100, 80, 128)
		data, mime, err := Normalize(original, 200)
		Expect(err).NotTo(HaveOccurred())
		Expect(mime).To(Equal("image/png"))
		Expect(data).To(Equal(original))
	})

	It("should downscale oversized images and re-encode as JPEG", func() {
		data, mime, err := Normalize(uniformImage(400, 200, 128), 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(mime).To(Equal("image/jpeg"))

		img, format, err := image.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("jpeg"))
		Expect(img.Bounds().Dx()).To(Equal(100))
		Expect(img.Bounds().Dy()).To(Equal(50))
	})

	It("should scale portrait images by their longest side", func() {
		data, _, err := Normalize(uniformImage(200, 400, 128), 100)
		Expect(err).NotTo(HaveOccurred())

		img, _, err := image.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dy()).To(Equal(100))
	})
})

var _ = Describe("Annotate", func() {
	violations := []models.Violation{
		{
			Type:          models.ViolationBox,
			BrandDetected: "Walmart",
			BoundingBox:   models.BoundingBox{0.25, 0.25, 0.75, 0.75},
			Confidence:    0.9,
		},
	}

	It("should return a decodable PNG with the box drawn", func() {
		annotated, err := Annotate(uniformImage(100, 100, 128), violations)
		Expect(err).NotTo(HaveOccurred())

		img, format, err := image.Decode(bytes.NewReader(annotated))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))

		// top-left corner of the violation rectangle should be red now
		r, g, b, _ := img.At(25, 25).RGBA()
		Expect(r >> 8).To(BeNumerically(">", 180))
		Expect(g >> 8).To(BeNumerically("<", 100))
		Expect(b >> 8).To(BeNumerically("<", 100))
	})

	It("should skip violations with invalid bounding boxes", func() {
		bad := []models.Violation{
			{Type: models.ViolationTape, BoundingBox: models.BoundingBox{0.9, 0.9, 0.1, 0.1}},
		}
		annotated, err := Annotate(uniformImage(50, 50, 128), bad)
		Expect(err).NotTo(HaveOccurred())
		Expect(annotated).NotTo(BeEmpty())
	})

	It("should fail on non-image data", func() {
		_, err := Annotate([]byte("junk"), violations)
		Expect(err).To(HaveOccurred())
	})
})
