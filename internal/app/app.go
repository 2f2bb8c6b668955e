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

// Package app wires configuration, the event bus, plugins, the HTTP API and
// the metrics endpoint into one runnable service.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/packwatch/packwatch/internal/api"
	"github.com/packwatch/packwatch/internal/checker"
	"github.com/packwatch/packwatch/internal/provider"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/metrics"
	"github.com/packwatch/packwatch/pkg/plugin"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const eventBusBufferSize = 1024

// Run starts the service and blocks until a shutdown signal arrives
func Run(configPath string) error {
	log := logger.GetLogger()

	// .env is optional; explicit environment variables win either way
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env file")
	}

	log.Info("Loading configuration", logger.Fields{"path": configPath})
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Logging.Level != "" {
		logger.SetLevel(cfg.Logging.Level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := eventbus.NewEventBus(eventBusBufferSize)

	m := plugin.NewManager(eventBus)
	if err := m.LoadPlugins(cfg.Plugins); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	if err := m.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start plugins: %w", err)
	}

	apiServer, apiChecker, err := buildAPIServer(cfg, eventBus)
	if err != nil {
		return err
	}
	if err := apiServer.Start(ctx); err != nil {
		return err
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path)
		metricsServer.Start()
	}

	// Hot reload only touches settings that are safe to change at runtime.
	watcher, err := config.NewWatcher(loader, func(newConfig *config.Config) {
		if newConfig.Logging.Level != "" {
			logger.SetLevel(newConfig.Logging.Level)
			log.Info("Log level updated", logger.Fields{"level": newConfig.Logging.Level})
		}
		if newConfig.Checker.ComplianceThreshold != apiChecker.Threshold() {
			apiChecker.SetThreshold(newConfig.Checker.ComplianceThreshold)
			log.Info("Compliance threshold updated", logger.Fields{
				"threshold": apiChecker.Threshold(),
			})
		}
	})
	if err != nil {
		log.Warn("Configuration hot reload unavailable", logger.Fields{"error": err.Error()})
	} else {
		if err := watcher.Start(ctx); err != nil {
			log.Warn("Failed to start configuration watcher", logger.Fields{"error": err.Error()})
		}
		defer func() { _ = watcher.Stop() }()
	}

	log.Info("PackWatch started successfully, waiting for shutdown signal")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("Received shutdown signal", logger.Fields{"signal": sig.String()})
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server", logger.Fields{"error": err.Error()})
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop metrics server", logger.Fields{"error": err.Error()})
		}
	}
	if err := m.StopAll(); err != nil {
		return fmt.Errorf("failed to stop plugins: %w", err)
	}

	log.Info("Shutdown completed")
	return nil
}

// buildAPIServer constructs the synchronous check surface from the checker
// section of the configuration.
func buildAPIServer(cfg *config.Config, eventBus *eventbus.EventBus) (*api.Server, *checker.Checker, error) {
	apiKey, err := config.GetSecureValue(cfg.Checker.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve checker API key: %w", err)
	}

	p, err := provider.New(provider.Config{
		Provider: cfg.Checker.Provider,
		Model:    cfg.Checker.Model,
		APIKey:   apiKey,
		APIBase:  cfg.Checker.APIBase,
		APIPath:  cfg.Checker.APIPath,
		Timeout:  time.Duration(cfg.Checker.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	c := checker.New(p, checker.Options{
		Timeout:             time.Duration(cfg.Checker.TimeoutSeconds) * time.Second,
		ComplianceThreshold: cfg.Checker.ComplianceThreshold,
	})

	handler := api.NewHandler(c, cfg.Checker.Model, cfg.Checker.MaxImageDimension, eventBus)
	return api.NewServer(handler, cfg.Server.Port), c, nil
}
