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

// Package metrics exposes Prometheus metrics for the compliance pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts compliance checks by outcome:
	// compliant, non_compliant, provider_error, format_error.
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packwatch_checks_total",
		Help: "Total number of compliance checks by outcome",
	}, []string{"outcome", "provider"})

	// CheckDurationSeconds tracks end-to-end duration of a single check,
	// including the provider round-trip and model inference.
	CheckDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "packwatch_check_duration_seconds",
		Help:    "Time taken to complete a single compliance check",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	// ViolationsTotal counts detected violations by type (box or tape)
	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packwatch_violations_total",
		Help: "Total number of detected branding violations by type",
	}, []string{"type"})

	// PhotosIngestedTotal counts photos accepted through any intake path
	PhotosIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packwatch_photos_ingested_total",
		Help: "Total number of delivery photos ingested",
	}, []string{"source"})

	// ConsistencyWarningsTotal counts reports whose fields disagreed with
	// each other (e.g. compliant with non-empty violations).
	ConsistencyWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packwatch_consistency_warnings_total",
		Help: "Total number of reports flagged for internal inconsistency",
	})

	// CheckQueueDepth gauges photos waiting in the checker worker pool
	CheckQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "packwatch_check_queue_depth",
		Help: "Number of photos currently queued or being checked",
	})
)

// RecordCheck updates the check counters and duration histogram
func RecordCheck(provider, outcome string, seconds float64) {
	ChecksTotal.WithLabelValues(outcome, provider).Inc()
	CheckDurationSeconds.WithLabelValues(provider).Observe(seconds)
}
