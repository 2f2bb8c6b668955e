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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packwatch/packwatch/pkg/logger"
)

// Server serves the Prometheus scrape endpoint on its own port
type Server struct {
	log    logger.Logger
	server *http.Server
	port   int
	path   string
}

// NewServer creates a new metrics server
func NewServer(port int, path string) *Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &Server{
		log: logger.GetLogger().WithField("component", "metrics"),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		port: port,
		path: path,
	}
}

// Start runs the metrics server in the background
func (s *Server) Start() {
	s.log.Info("Starting metrics server", logger.Fields{
		"port": s.port,
		"path": s.path,
	})
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server failed", logger.Fields{"error": err.Error()})
		}
	}()
}

// Stop shuts the metrics server down
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
