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

// Package checker implements the compliance check contract: one delivery
// photo in, one strictly validated ComplianceReport out. The checker holds
// no state between calls and performs no business logic beyond relaying the
// model's judgment.
package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/packwatch/packwatch/internal/provider"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/metrics"
	"github.com/packwatch/packwatch/pkg/models"
)

// Options tunes checker behavior
type Options struct {
	// Timeout bounds the provider round-trip including model inference.
	// Expiry surfaces as a ProviderError.
	Timeout time.Duration

	// ComplianceThreshold is the score below which a report claiming
	// compliance is flagged as inconsistent. The score is never recomputed.
	ComplianceThreshold int
}

const (
	defaultTimeout   = 60 * time.Second
	defaultThreshold = 50
)

// Checker submits delivery photos to a provider and validates the replies
type Checker struct {
	log       logger.Logger
	provider  provider.Provider
	timeout   time.Duration
	threshold atomic.Int64
}

// Result is the outcome of one compliance check
type Result struct {
	Report   *models.ComplianceReport
	Warnings []string
	Duration time.Duration
}

// New creates a checker bound to the given provider adapter
func New(p provider.Provider, opts Options) *Checker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	threshold := opts.ComplianceThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	c := &Checker{
		log:      logger.GetLogger().WithField("component", "checker"),
		provider: p,
		timeout:  timeout,
	}
	c.threshold.Store(int64(threshold))
	return c
}

// Threshold returns the configured compliance threshold
func (c *Checker) Threshold() int { return int(c.threshold.Load()) }

// SetThreshold updates the consistency-flagging threshold at runtime.
// Non-positive values are ignored.
func (c *Checker) SetThreshold(threshold int) {
	if threshold > 0 {
		c.threshold.Store(int64(threshold))
	}
}

// Provider returns the name of the underlying provider adapter
func (c *Checker) Provider() string { return c.provider.Name() }

// Check submits one image with the fixed instruction prompt and returns the
// model's judgment unchanged. Errors are typed: ProviderError when the
// upstream call fails, FormatError when the reply violates the report schema.
// A report is never fabricated on failure.
func (c *Checker) Check(ctx context.Context, image []byte, mimeType string) (*Result, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.provider.SubmitImagePrompt(ctx, image, mimeType, compliancePrompt)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordCheck(c.provider.Name(), "provider_error", duration.Seconds())
		return nil, &ProviderError{Provider: c.provider.Name(), Err: err}
	}

	report, err := c.parseReply(raw)
	if err != nil {
		metrics.RecordCheck(c.provider.Name(), "format_error", duration.Seconds())
		return nil, err
	}

	warnings := report.ConsistencyWarnings(c.Threshold())
	if len(warnings) > 0 {
		metrics.ConsistencyWarningsTotal.Inc()
		c.log.Warn("Report flagged as internally inconsistent", logger.Fields{
			"warnings":         warnings,
			"compliance_score": report.ComplianceScore,
			"is_compliant":     report.IsCompliant,
			"violation_count":  len(report.Violations),
		})
	}

	outcome := "compliant"
	if !report.IsCompliant {
		outcome = "non_compliant"
	}
	metrics.RecordCheck(c.provider.Name(), outcome, duration.Seconds())
	for _, v := range report.Violations {
		metrics.ViolationsTotal.WithLabelValues(string(v.Type)).Inc()
	}

	c.log.Debug("Check completed", logger.Fields{
		"provider":         c.provider.Name(),
		"is_compliant":     report.IsCompliant,
		"compliance_score": report.ComplianceScore,
		"violation_count":  len(report.Violations),
		"duration_ms":      duration.Milliseconds(),
	})

	return &Result{Report: report, Warnings: warnings, Duration: duration}, nil
}

// parseReply strictly parses the model's textual reply as a ComplianceReport.
// Markdown code fences are stripped first since some models wrap JSON in them
// despite being told not to.
func (c *Checker) parseReply(raw string) (*models.ComplianceReport, error) {
	cleaned := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, &FormatError{Raw: raw, Err: fmt.Errorf("reply is not a JSON object: %w", err)}
	}
	for _, required := range models.RequiredReportFields {
		if _, ok := fields[required]; !ok {
			return nil, &FormatError{Raw: raw, Err: fmt.Errorf("missing required field %q", required)}
		}
	}

	report := &models.ComplianceReport{}
	if err := json.Unmarshal([]byte(cleaned), report); err != nil {
		return nil, &FormatError{Raw: raw, Err: err}
	}
	if err := report.Validate(); err != nil {
		return nil, &FormatError{Raw: raw, Err: err}
	}
	return report, nil
}

// stripCodeFence extracts the content of a ```json ... ``` or ``` ... ```
// block, returning the input unchanged when no fence is present.
func stripCodeFence(s string) string {
	for _, fence := range []string{"```json", "```"} {
		if idx := strings.Index(s, fence); idx != -1 {
			rest := s[idx+len(fence):]
			if end := strings.Index(rest, "```"); end != -1 {
				return strings.TrimSpace(rest[:end])
			}
		}
	}
	return strings.TrimSpace(s)
}
