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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewReportRecord", func() {
	It("flattens a report into its storable row", func() {
		report := walmartReport()
		info := &ReportInfo{
			PhotoID:   "photo-9",
			Source:    "watcher",
			FileName:  "porch.jpg",
			Provider:  "openai",
			Model:     "gpt-4o",
			Report:    report,
			Warnings:  []string{"is_compliant is true but violations are present"},
			Duration:  1500 * time.Millisecond,
			CheckedAt: time.Now(),
		}

		record := NewReportRecord(info)

		Expect(record.PhotoID).To(Equal("photo-9"))
		Expect(record.ComplianceScore).To(Equal(report.ComplianceScore))
		Expect(record.IsCompliant).To(BeFalse())
		Expect(record.ViolationCount).To(Equal(len(report.Violations)))
		Expect(record.ImageQuality).To(Equal(string(report.ImageQuality)))
		Expect(record.DurationMs).To(Equal(int64(1500)))

		Expect(record.Violations).NotTo(BeNil())
		var violations []Violation
		Expect(json.Unmarshal([]byte(*record.Violations), &violations)).To(Succeed())
		Expect(violations).To(Equal(report.Violations))

		Expect(record.Warnings).NotTo(BeNil())
		var warnings []string
		Expect(json.Unmarshal([]byte(*record.Warnings), &warnings)).To(Succeed())
		Expect(warnings).To(Equal(info.Warnings))
	})

	It("leaves JSON columns nil for a clean compliant report", func() {
		info := &ReportInfo{
			PhotoID:   "photo-10",
			Report:    compliantReport(),
			CheckedAt: time.Now(),
		}

		record := NewReportRecord(info)

		Expect(record.IsCompliant).To(BeTrue())
		Expect(record.ViolationCount).To(BeZero())
		Expect(record.Violations).To(BeNil())
		Expect(record.Warnings).To(BeNil())
	})
})
