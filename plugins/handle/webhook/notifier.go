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

package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/packwatch/packwatch/pkg/models"
)

// Notifier delivers compliance alerts to a Lark webhook as interactive cards
type Notifier struct {
	WebhookURL string
	HTTPClient *http.Client
}

func NewNotifier(webhookURL string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendComplianceAlert notifies about a failed check. Compliant reports and
// reports without a parsed body are skipped.
func (f *Notifier) SendComplianceAlert(info *models.ReportInfo) error {
	if f.WebhookURL == "" {
		return errors.New("webhook URL not configured, skipping notification")
	}
	if info == nil || info.Report == nil {
		return errors.New("compliance report is empty")
	}
	if info.Report.IsCompliant {
		return nil
	}

	message := LarkMessage{
		MsgType: "interactive",
		Card:    f.buildAlertMessage(info),
	}
	return f.sendMessage(message)
}

func (f *Notifier) buildAlertMessage(info *models.ReportInfo) map[string]any {
	report := info.Report

	elements := []map[string]any{
		{
			"tag": "div",
			"text": map[string]any{
				"content": "**Photo:** " + info.FileName,
				"tag":     "lark_md",
			},
		},
		{
			"tag": "div",
			"text": map[string]any{
				"content": "**Photo ID:** " + info.PhotoID,
				"tag":     "lark_md",
			},
		},
		{
			"tag": "div",
			"text": map[string]any{
				"content": fmt.Sprintf("**Compliance Score:** %d / 100", report.ComplianceScore),
				"tag":     "lark_md",
			},
		},
		{
			"tag": "div",
			"text": map[string]any{
				"content": "**Image Quality:** " + string(report.ImageQuality),
				"tag":     "lark_md",
			},
		},
	}

	if report.Summary != "" {
		elements = append(elements, map[string]any{
			"tag": "div",
			"text": map[string]any{
				"content": "**Summary:** " + report.Summary,
				"tag":     "lark_md",
			},
		})
	}

	if len(report.Violations) > 0 {
		violationContent := "**Violations:**\n"
		for i, v := range report.Violations {
			if i == 5 {
				violationContent += fmt.Sprintf("  • ... %d more violations\n", len(report.Violations)-5)
				break
			}
			violationContent += fmt.Sprintf("  • [%s] %s: %s\n", v.Type, v.BrandDetected, v.Description)
		}
		elements = append(elements,
			map[string]any{"tag": "hr"},
			map[string]any{
				"tag": "div",
				"text": map[string]any{
					"content": violationContent,
					"tag":     "lark_md",
				},
			},
		)
	}

	if len(info.Warnings) > 0 {
		warningContent := "**Consistency Warnings:**\n"
		for _, w := range info.Warnings {
			warningContent += fmt.Sprintf("  • %s\n", w)
		}
		elements = append(elements, map[string]any{
			"tag": "div",
			"text": map[string]any{
				"content": warningContent,
				"tag":     "lark_md",
			},
		})
	}

	elements = append(elements,
		map[string]any{"tag": "hr"},
		map[string]any{
			"tag": "div",
			"text": map[string]any{
				"content": "**Checked At:** " + info.CheckedAt.Format(time.DateTime),
				"tag":     "lark_md",
			},
		},
		map[string]any{
			"tag": "div",
			"text": map[string]any{
				"content": fmt.Sprintf("**Model:** %s/%s", info.Provider, info.Model),
				"tag":     "lark_md",
			},
		},
	)

	return map[string]any{
		"config": map[string]any{
			"wide_screen_mode": true,
		},
		"header": map[string]any{
			"template": "red",
			"title": map[string]any{
				"content": "Package Branding Violation Alert",
				"tag":     "plain_text",
			},
		},
		"elements": elements,
	}
}

func (f *Notifier) sendMessage(message LarkMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	resp, err := f.HTTPClient.Post(
		f.WebhookURL,
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	var larkResp LarkResponse
	if err := json.Unmarshal(body, &larkResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || larkResp.Code != 0 {
		return fmt.Errorf("webhook notification failed: HTTP status %d, error code %d, error message: %s",
			resp.StatusCode, larkResp.Code, larkResp.Msg)
	}
	return nil
}
