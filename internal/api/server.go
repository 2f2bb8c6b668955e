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
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/packwatch/packwatch/pkg/logger"
)

// Server hosts the compliance check API
type Server struct {
	log        logger.Logger
	handler    *Handler
	httpServer *http.Server
	port       int
}

// NewServer creates the API server with its routes registered
func NewServer(handler *Handler, port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/check", handler.CheckHandler)
	mux.HandleFunc("/api/reports", handler.ReportsHandler)
	mux.HandleFunc("/health", handler.HealthHandler)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
		// WriteTimeout must cover a full provider round-trip
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	return &Server{
		log:        logger.GetLogger().WithField("component", "api"),
		handler:    handler,
		httpServer: httpServer,
		port:       port,
	}
}

// Start begins serving in the background, returning early startup errors
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting API server", logger.Fields{
		"port": s.port,
		"endpoints": []string{
			"/api/check",
			"/api/reports",
			"/health",
		},
	})

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start API server: %w", err)
	case <-time.After(100 * time.Millisecond):
		s.log.Info("API server started successfully", logger.Fields{"port": s.port})
		return nil
	}
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}
