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

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/packwatch/packwatch/internal/checker"
	"github.com/packwatch/packwatch/internal/provider"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/storage"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

const compliantReply = `{
	"shipping_box_detected": true,
	"compliance_score": 100,
	"is_compliant": true,
	"violations": [],
	"image_quality": "high",
	"summary": "Plain brown shipping box with no visible branding."
}`

const walmartReply = `{
	"shipping_box_detected": true,
	"compliance_score": 25,
	"is_compliant": false,
	"violations": [
		{
			"type": "box",
			"description": "Walmart logo printed on the box",
			"brand_detected": "Walmart",
			"bounding_box": [0.1, 0.2, 0.6, 0.7],
			"confidence": 0.95
		}
	],
	"image_quality": "medium",
	"summary": "Reused Walmart retail box."
}`

// fakeProviderServer mimics an OpenAI-compatible endpoint returning a fixed
// model reply.
func fakeProviderServer(reply string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
			return
		}
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func testImagePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{R: 120, G: 90, B: 60, A: 255}
			if (x/8+y/8)%2 == 0 {
				c = color.RGBA{R: 180, G: 150, B: 110, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func multipartUpload(field, filename string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		panic(err)
	}
	_, _ = part.Write(data)
	for k, v := range extra {
		_ = writer.WriteField(k, v)
	}
	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func newTestHandler(providerURL string) *Handler {
	p, err := provider.New(provider.Config{
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-4o",
		APIKey:   "test-key",
		APIBase:  providerURL,
	})
	Expect(err).NotTo(HaveOccurred())
	c := checker.New(p, checker.Options{})
	return NewHandler(c, "gpt-4o", 2048, nil)
}

type stubStore struct {
	records []models.ReportRecord
	err     error
}

func (s *stubStore) RecentReports(limit int) ([]models.ReportRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

var _ = Describe("CheckHandler", func() {
	var upstream *httptest.Server

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	post := func(handler *Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/check", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.CheckHandler(rec, req)
		return rec
	}

	It("returns the report for a compliant photo", func() {
		upstream = fakeProviderServer(compliantReply, http.StatusOK)
		handler := newTestHandler(upstream.URL)

		body, contentType := multipartUpload("image", "box.png", testImagePNG(), nil)
		rec := post(handler, body, contentType)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp CheckResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.PhotoID).NotTo(BeEmpty())
		Expect(resp.Report.IsCompliant).To(BeTrue())
		Expect(resp.Report.ComplianceScore).To(Equal(100))
		Expect(resp.AnnotatedImage).To(BeEmpty())
	})

	It("includes an annotated image when requested and violations exist", func() {
		upstream = fakeProviderServer(walmartReply, http.StatusOK)
		handler := newTestHandler(upstream.URL)

		body, contentType := multipartUpload("image", "box.png", testImagePNG(),
			map[string]string{"annotate": "true"})
		rec := post(handler, body, contentType)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp CheckResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Report.IsCompliant).To(BeFalse())
		Expect(resp.Report.Violations).To(HaveLen(1))
		Expect(resp.Report.Violations[0].BrandDetected).To(Equal("Walmart"))
		Expect(resp.AnnotatedImage).NotTo(BeEmpty())
	})

	It("rejects a request without an image field", func() {
		upstream = fakeProviderServer(compliantReply, http.StatusOK)
		handler := newTestHandler(upstream.URL)

		body, contentType := multipartUpload("photo", "box.png", testImagePNG(), nil)
		rec := post(handler, body, contentType)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		var resp ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Error).To(Equal("bad_request"))
	})

	It("maps upstream failures to 502 with a typed body", func() {
		upstream = fakeProviderServer("", http.StatusTooManyRequests)
		handler := newTestHandler(upstream.URL)

		body, contentType := multipartUpload("image", "box.png", testImagePNG(), nil)
		rec := post(handler, body, contentType)

		Expect(rec.Code).To(Equal(http.StatusBadGateway))
		var resp ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Error).To(Equal("provider_error"))
	})

	It("maps malformed model replies to 502 format_error", func() {
		upstream = fakeProviderServer("the box looks fine to me", http.StatusOK)
		handler := newTestHandler(upstream.URL)

		body, contentType := multipartUpload("image", "box.png", testImagePNG(), nil)
		rec := post(handler, body, contentType)

		Expect(rec.Code).To(Equal(http.StatusBadGateway))
		var resp ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Error).To(Equal("format_error"))
	})

	It("rejects uploads that are not images", func() {
		upstream = fakeProviderServer(compliantReply, http.StatusOK)
		handler := newTestHandler(upstream.URL)

		body, contentType := multipartUpload("image", "notes.txt", []byte("not an image"), nil)
		rec := post(handler, body, contentType)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("ReportsHandler", func() {
	AfterEach(func() {
		storage.SetReportStore(nil)
	})

	It("returns 503 when no store is registered", func() {
		storage.SetReportStore(nil)
		handler := NewHandler(nil, "", 2048, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
		rec := httptest.NewRecorder()
		handler.ReportsHandler(rec, req)

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("returns records from the registered store", func() {
		storage.SetReportStore(&stubStore{records: []models.ReportRecord{
			{PhotoID: "photo-1", IsCompliant: true, ComplianceScore: 100},
			{PhotoID: "photo-2", IsCompliant: false, ComplianceScore: 20},
		}})
		handler := NewHandler(nil, "", 2048, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/reports?limit=1", nil)
		rec := httptest.NewRecorder()
		handler.ReportsHandler(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var records []models.ReportRecord
		Expect(json.Unmarshal(rec.Body.Bytes(), &records)).To(Succeed())
		Expect(records).To(HaveLen(1))
		Expect(records[0].PhotoID).To(Equal("photo-1"))
	})

	It("rejects non-GET methods", func() {
		handler := NewHandler(nil, "", 2048, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/reports", nil)
		rec := httptest.NewRecorder()
		handler.ReportsHandler(rec, req)
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})
})

var _ = Describe("HealthHandler", func() {
	It("reports ok", func() {
		handler := NewHandler(nil, "", 2048, nil)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.HealthHandler(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"status":"ok"`))
	})
})

var _ = It("server routes are registered", func() {
	upstream := fakeProviderServer(compliantReply, http.StatusOK)
	defer upstream.Close()
	handler := newTestHandler(upstream.URL)
	server := NewServer(handler, 0)
	Expect(server).NotTo(BeNil())
	Expect(fmt.Sprintf("%T", server.httpServer.Handler)).To(Equal("*http.ServeMux"))
})
