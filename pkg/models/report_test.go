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

package models

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestModels(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Models Suite")
}

func compliantReport() *ComplianceReport {
	box := BoundingBox{0.1, 0.2, 0.8, 0.9}
	return &ComplianceReport{
		ShippingBoxDetected: true,
		BoxBoundingBox:      &box,
		ComplianceScore:     95,
		IsCompliant:         true,
		Violations:          []Violation{},
		ImageQuality:        QualityHigh,
		Summary:             "Plain brown cardboard box, no visible branding.",
	}
}

func walmartReport() *ComplianceReport {
	box := BoundingBox{0.05, 0.1, 0.95, 0.85}
	return &ComplianceReport{
		ShippingBoxDetected: true,
		BoxBoundingBox:      &box,
		ComplianceScore:     20,
		IsCompliant:         false,
		Violations: []Violation{
			{
				Type:          ViolationBox,
				Description:   "Walmart wordmark printed on the front face of the box",
				BrandDetected: "Walmart",
				BoundingBox:   BoundingBox{0.3, 0.4, 0.7, 0.55},
				Confidence:    0.94,
			},
		},
		ImageQuality: QualityMedium,
		Summary:      "Retail branding visible on the box.",
	}
}

var _ = Describe("BoundingBox", func() {
	It("should accept a normalized box with ordered corners", func() {
		Expect(BoundingBox{0, 0, 1, 1}.Validate()).To(Succeed())
		Expect(BoundingBox{0.2, 0.3, 0.4, 0.5}.Validate()).To(Succeed())
	})

	It("should reject coordinates outside [0,1]", func() {
		Expect(BoundingBox{-0.1, 0, 0.5, 0.5}.Validate()).NotTo(Succeed())
		Expect(BoundingBox{0, 0, 1.2, 0.5}.Validate()).NotTo(Succeed())
	})

	It("should reject unordered corners", func() {
		Expect(BoundingBox{0.6, 0.1, 0.4, 0.5}.Validate()).NotTo(Succeed())
		Expect(BoundingBox{0.1, 0.7, 0.4, 0.5}.Validate()).NotTo(Succeed())
		Expect(BoundingBox{0.5, 0.5, 0.5, 0.9}.Validate()).NotTo(Succeed())
	})
})

var _ = Describe("ComplianceReport", func() {
	Describe("Validate", func() {
		It("should accept a compliant plain-box report", func() {
			Expect(compliantReport().Validate()).To(Succeed())
		})

		It("should accept a violation report", func() {
			Expect(walmartReport().Validate()).To(Succeed())
		})

		It("should reject scores outside 0-100", func() {
			r := compliantReport()
			r.ComplianceScore = 101
			Expect(r.Validate()).NotTo(Succeed())

			r.ComplianceScore = -1
			Expect(r.Validate()).NotTo(Succeed())
		})

		It("should reject unknown image quality values", func() {
			r := compliantReport()
			r.ImageQuality = "excellent"
			Expect(r.Validate()).NotTo(Succeed())
		})

		It("should reject invalid violation types", func() {
			r := walmartReport()
			r.Violations[0].Type = "label"
			Expect(r.Validate()).NotTo(Succeed())
		})

		It("should reject confidence outside 0-1", func() {
			r := walmartReport()
			r.Violations[0].Confidence = 1.5
			Expect(r.Validate()).NotTo(Succeed())
		})

		It("should reject an invalid box bounding box", func() {
			r := compliantReport()
			r.BoxBoundingBox = &BoundingBox{0.9, 0.1, 0.2, 0.8}
			Expect(r.Validate()).NotTo(Succeed())
		})
	})

	Describe("JSON round-trip", func() {
		It("should yield an equivalent structure", func() {
			original := walmartReport()
			data, err := json.Marshal(original)
			Expect(err).NotTo(HaveOccurred())

			var decoded ComplianceReport
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(&decoded).To(Equal(original))
		})

		It("should omit the box bounding box when no box was detected", func() {
			r := compliantReport()
			r.ShippingBoxDetected = false
			r.BoxBoundingBox = nil

			data, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).NotTo(ContainSubstring("box_bounding_box"))
		})
	})

	Describe("ConsistencyWarnings", func() {
		It("should be empty for a coherent compliant report", func() {
			Expect(compliantReport().ConsistencyWarnings(50)).To(BeEmpty())
		})

		It("should be empty for a coherent violation report", func() {
			Expect(walmartReport().ConsistencyWarnings(50)).To(BeEmpty())
		})

		It("should flag a compliant report that lists violations", func() {
			r := walmartReport()
			r.IsCompliant = true
			r.ComplianceScore = 80
			Expect(r.ConsistencyWarnings(50)).NotTo(BeEmpty())
		})

		It("should flag a non-compliant report with no violations", func() {
			r := compliantReport()
			r.IsCompliant = false
			warnings := r.ConsistencyWarnings(50)
			Expect(warnings).NotTo(BeEmpty())
		})

		It("should flag a compliant report scoring below the threshold", func() {
			r := compliantReport()
			r.ComplianceScore = 30
			Expect(r.ConsistencyWarnings(50)).NotTo(BeEmpty())
		})
	})
})
