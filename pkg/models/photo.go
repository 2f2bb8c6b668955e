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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PhotoInfo is one delivery photo flowing through the intake topic
type PhotoInfo struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	FileName   string       `json:"file_name"`
	MIMEType   string       `json:"mime_type"`
	Bytes      []byte       `json:"-"`
	Quality    ImageQuality `json:"quality,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
}

// ReportInfo is a completed check flowing through the report topic
type ReportInfo struct {
	PhotoID   string            `json:"photo_id"`
	Source    string            `json:"source"`
	FileName  string            `json:"file_name"`
	Provider  string            `json:"provider"`
	Model     string            `json:"model"`
	Report    *ComplianceReport `json:"report"`
	Warnings  []string          `json:"warnings,omitempty"`
	Duration  time.Duration     `json:"duration"`
	CheckedAt time.Time         `json:"checked_at"`
}

// SaveToFile persists the report information to a JSON file in the specified
// directory, one file per check, named after the photo ID.
func (r *ReportInfo) SaveToFile(dirPath string) error {
	if r == nil {
		return errors.New("models.ReportInfo is nil")
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	filename := fmt.Sprintf("report_%s_%s.json", r.CheckedAt.Format("20060102_150405"), r.PhotoID)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirPath, filename), data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
