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
)

// ReportRecord is the persisted form of a completed compliance check.
// Violations and warnings are stored as JSON columns so the schema does not
// change when the report format gains fields.
type ReportRecord struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	PhotoID             string    `gorm:"size:64;index" json:"photo_id"`
	Source              string    `gorm:"size:64"    json:"source"`
	FileName            string    `gorm:"size:255"   json:"file_name"`
	Provider            string    `gorm:"size:64"    json:"provider"`
	Model               string    `gorm:"size:128"   json:"model"`
	ShippingBoxDetected bool      `                  json:"shipping_box_detected"`
	ComplianceScore     int       `                  json:"compliance_score"`
	IsCompliant         bool      `                  json:"is_compliant"`
	ViolationCount      int       `                  json:"violation_count"`
	Violations          *string   `gorm:"type:json"  json:"violations,omitempty"`
	ImageQuality        string    `gorm:"size:16"    json:"image_quality"`
	Summary             string    `gorm:"type:text"  json:"summary"`
	Warnings            *string   `gorm:"type:json"  json:"warnings,omitempty"`
	DurationMs          int64     `                  json:"duration_ms"`
	CheckedAt           time.Time `                  json:"checked_at"`
	CreatedAt           time.Time `                  json:"created_at"`
	UpdatedAt           time.Time `                  json:"updated_at"`
}

// NewReportRecord flattens a ReportInfo into its storable row
func NewReportRecord(info *ReportInfo) ReportRecord {
	record := ReportRecord{
		PhotoID:    info.PhotoID,
		Source:     info.Source,
		FileName:   info.FileName,
		Provider:   info.Provider,
		Model:      info.Model,
		DurationMs: info.Duration.Milliseconds(),
		CheckedAt:  info.CheckedAt,
	}
	if info.Report != nil {
		record.ShippingBoxDetected = info.Report.ShippingBoxDetected
		record.ComplianceScore = info.Report.ComplianceScore
		record.IsCompliant = info.Report.IsCompliant
		record.ViolationCount = len(info.Report.Violations)
		record.ImageQuality = string(info.Report.ImageQuality)
		record.Summary = info.Report.Summary
		if len(info.Report.Violations) > 0 {
			if violationsJSON, err := json.Marshal(info.Report.Violations); err == nil {
				s := string(violationsJSON)
				record.Violations = &s
			}
		}
	}
	if len(info.Warnings) > 0 {
		if warningsJSON, err := json.Marshal(info.Warnings); err == nil {
			s := string(warningsJSON)
			record.Warnings = &s
		}
	}
	return record
}
