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

// Package api provides the HTTP surface for synchronous compliance checks
// and report retrieval.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/packwatch/packwatch/internal/checker"
	"github.com/packwatch/packwatch/internal/imaging"
	"github.com/packwatch/packwatch/pkg/constants"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/metrics"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/storage"
)

// maxUploadBytes bounds multipart uploads; delivery photos are phone shots
const maxUploadBytes = 20 << 20

// Handler serves the check and report endpoints
type Handler struct {
	log          logger.Logger
	checker      *checker.Checker
	model        string
	maxDimension int
	eventBus     *eventbus.EventBus
}

// CheckResponse is the body returned by a successful synchronous check
type CheckResponse struct {
	PhotoID        string                   `json:"photo_id"`
	Report         *models.ComplianceReport `json:"report"`
	Warnings       []string                 `json:"warnings,omitempty"`
	ImageQuality   models.ImageQuality      `json:"image_quality"`
	DurationMs     int64                    `json:"duration_ms"`
	AnnotatedImage string                   `json:"annotated_image,omitempty"`
}

// ErrorResponse is the body returned for every non-2xx outcome
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHandler creates an API handler bound to a checker. The event bus is
// optional; when set, API checks flow to the handle plugins like watcher
// intake does.
func NewHandler(c *checker.Checker, model string, maxDimension int, eventBus *eventbus.EventBus) *Handler {
	return &Handler{
		log:          logger.GetLogger().WithField("component", "api"),
		checker:      c,
		model:        model,
		maxDimension: maxDimension,
		eventBus:     eventBus,
	}
}

// CheckHandler accepts a multipart upload ("image" field) and runs one
// synchronous compliance check. With annotate=true the response carries a
// base64 PNG with violation bounding boxes drawn in.
func (h *Handler) CheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "missing image field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "uploaded image is empty")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds upload limit")
		return
	}

	photoID := uuid.NewString()
	metrics.PhotosIngestedTotal.WithLabelValues("api").Inc()

	normalized, mimeType, err := imaging.Normalize(data, h.maxDimension)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unsupported image: "+err.Error())
		return
	}

	quality := models.QualityLow
	if assessment, err := imaging.AssessQuality(normalized); err == nil {
		quality = assessment.Quality
	}

	result, err := h.checker.Check(r.Context(), normalized, mimeType)
	if err != nil {
		h.writeCheckError(w, photoID, err)
		return
	}

	response := CheckResponse{
		PhotoID:      photoID,
		Report:       result.Report,
		Warnings:     result.Warnings,
		ImageQuality: quality,
		DurationMs:   result.Duration.Milliseconds(),
	}

	if r.FormValue("annotate") == "true" && len(result.Report.Violations) > 0 {
		annotated, err := imaging.Annotate(normalized, result.Report.Violations)
		if err != nil {
			h.log.Warn("Failed to annotate image", logger.Fields{
				"photo_id": photoID,
				"error":    err.Error(),
			})
		} else {
			response.AnnotatedImage = base64.StdEncoding.EncodeToString(annotated)
		}
	}

	if h.eventBus != nil {
		h.eventBus.Publish(constants.ReportTopic, eventbus.Event{Payload: &models.ReportInfo{
			PhotoID:   photoID,
			Source:    "api",
			FileName:  header.Filename,
			Provider:  h.checker.Provider(),
			Model:     h.model,
			Report:    result.Report,
			Warnings:  result.Warnings,
			Duration:  result.Duration,
			CheckedAt: time.Now(),
		}})
	}

	h.log.Info("API check completed", logger.Fields{
		"photo_id":     photoID,
		"file":         header.Filename,
		"is_compliant": result.Report.IsCompliant,
		"duration_ms":  result.Duration.Milliseconds(),
	})

	writeJSON(w, http.StatusOK, response)
}

// writeCheckError maps the checker's typed errors onto HTTP statuses.
// Provider timeouts become 504, other upstream failures and malformed model
// replies become 502 so the caller can tell them from client errors.
func (h *Handler) writeCheckError(w http.ResponseWriter, photoID string, err error) {
	var providerErr *checker.ProviderError
	var formatErr *checker.FormatError

	switch {
	case errors.Is(err, checker.ErrEmptyImage):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.As(err, &providerErr):
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.log.Error("Provider error during API check", logger.Fields{
			"photo_id": photoID,
			"provider": providerErr.Provider,
			"error":    err.Error(),
		})
		writeError(w, status, "provider_error", providerErr.Error())
	case errors.As(err, &formatErr):
		h.log.Error("Format error during API check", logger.Fields{
			"photo_id": photoID,
			"error":    err.Error(),
		})
		writeError(w, http.StatusBadGateway, "format_error", formatErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// ReportsHandler returns recent persisted reports, newest first
func (h *Handler) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	store := storage.GetReportStore()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "no_store", "report persistence is not enabled")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	records, err := store.RecentReports(limit)
	if err != nil {
		h.log.Error("Failed to load reports", logger.Fields{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load reports")
		return
	}

	h.log.Info("Returning report records", logger.Fields{
		"count":  len(records),
		"remote": r.RemoteAddr,
	})
	writeJSON(w, http.StatusOK, records)
}

// HealthHandler reports service liveness
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
