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

// Package vision implements the checker plugin that consumes intake photos,
// runs them through the compliance checker and publishes the resulting
// reports. Failed checks are logged and counted, never published as reports.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/packwatch/packwatch/internal/checker"
	"github.com/packwatch/packwatch/internal/imaging"
	"github.com/packwatch/packwatch/internal/provider"
	"github.com/packwatch/packwatch/pkg/constants"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/metrics"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/plugin"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const (
	pluginName = constants.CheckerVisionName
	pluginType = constants.CheckerPluginType
)

func init() {
	plugin.PluginFactories[pluginName] = func() plugin.Plugin {
		return &VisionPlugin{
			log: logger.GetLogger().WithField("plugin", pluginName),
		}
	}
}

// VisionPlugin checks intake photos against the branding policy
type VisionPlugin struct {
	log          logger.Logger
	checker      *checker.Checker
	visionConfig VisionConfig
	cancel       context.CancelFunc
}

// VisionConfig is the plugin's JSON settings document
type VisionConfig struct {
	MaxWorkers          int    `json:"maxWorkers"`
	Provider            string `json:"provider"`
	Model               string `json:"model"`
	APIKey              string `json:"apiKey"`
	APIBase             string `json:"apiBase"`
	APIPath             string `json:"apiPath"`
	TimeoutSeconds      int    `json:"timeoutSeconds"`
	ComplianceThreshold int    `json:"complianceThreshold"`
	MaxImageDimension   int    `json:"maxImageDimension"`
	AnnotatedDir        string `json:"annotatedDir"`
}

func (p *VisionPlugin) getDefaultConfig() VisionConfig {
	return VisionConfig{
		MaxWorkers:          4,
		Provider:            provider.ProviderOpenAI,
		Model:               "gpt-4o",
		TimeoutSeconds:      60,
		ComplianceThreshold: 50,
		MaxImageDimension:   2048,
	}
}

func (p *VisionPlugin) Name() string { return pluginName }
func (p *VisionPlugin) Type() string { return pluginType }

func (p *VisionPlugin) loadConfig(setting string) error {
	p.visionConfig = p.getDefaultConfig()

	if setting == "" {
		return errors.New("configuration cannot be empty")
	}
	var cfg VisionConfig
	if err := json.Unmarshal([]byte(setting), &cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if cfg.APIKey == "" {
		return errors.New("apiKey configuration is required")
	}

	apiKey, err := config.GetSecureValue(cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to resolve apiKey: %w", err)
	}
	p.visionConfig.APIKey = apiKey

	if cfg.Provider != "" {
		p.visionConfig.Provider = cfg.Provider
	}
	if cfg.Model != "" {
		p.visionConfig.Model = cfg.Model
	}
	p.visionConfig.APIBase = cfg.APIBase
	p.visionConfig.APIPath = cfg.APIPath
	p.visionConfig.AnnotatedDir = cfg.AnnotatedDir
	if cfg.MaxWorkers > 0 {
		p.visionConfig.MaxWorkers = cfg.MaxWorkers
	}
	if cfg.TimeoutSeconds > 0 {
		p.visionConfig.TimeoutSeconds = cfg.TimeoutSeconds
	}
	if cfg.ComplianceThreshold > 0 {
		p.visionConfig.ComplianceThreshold = cfg.ComplianceThreshold
	}
	if cfg.MaxImageDimension > 0 {
		p.visionConfig.MaxImageDimension = cfg.MaxImageDimension
	}

	p.log.Info("Vision checker configuration loaded", logger.Fields{
		"provider":    p.visionConfig.Provider,
		"model":       p.visionConfig.Model,
		"max_workers": p.visionConfig.MaxWorkers,
		"timeout_s":   p.visionConfig.TimeoutSeconds,
	})
	return nil
}

// Start subscribes to the intake topic and runs checks through a bounded
// worker pool. Each photo is handled independently; there is no shared state
// between checks beyond the provider connection.
func (p *VisionPlugin) Start(
	ctx context.Context,
	pluginConfig config.PluginConfig,
	eventBus *eventbus.EventBus,
) error {
	if err := p.loadConfig(pluginConfig.Settings); err != nil {
		p.log.Error("Failed to load configuration", logger.Fields{"error": err.Error()})
		return err
	}

	prov, err := provider.New(provider.Config{
		Provider: p.visionConfig.Provider,
		Model:    p.visionConfig.Model,
		APIKey:   p.visionConfig.APIKey,
		APIBase:  p.visionConfig.APIBase,
		APIPath:  p.visionConfig.APIPath,
		Timeout:  time.Duration(p.visionConfig.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to build provider: %w", err)
	}
	p.checker = checker.New(prov, checker.Options{
		Timeout:             time.Duration(p.visionConfig.TimeoutSeconds) * time.Second,
		ComplianceThreshold: p.visionConfig.ComplianceThreshold,
	})

	ctx, p.cancel = context.WithCancel(ctx)
	subscribe := eventBus.Subscribe(constants.IntakePhotoTopic)
	semaphore := make(chan struct{}, p.visionConfig.MaxWorkers)

	p.log.Info("Vision checker started", logger.Fields{
		"topic":            constants.IntakePhotoTopic,
		"worker_pool_size": p.visionConfig.MaxWorkers,
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-subscribe:
				if !ok {
					p.log.Info("Event subscription channel closed")
					return
				}
				photo, ok := event.Payload.(*models.PhotoInfo)
				if !ok {
					p.log.Error("Invalid event payload type", logger.Fields{
						"expected": "*models.PhotoInfo",
						"actual":   fmt.Sprintf("%T", event.Payload),
					})
					continue
				}

				semaphore <- struct{}{}
				metrics.CheckQueueDepth.Inc()
				go func(photo *models.PhotoInfo) {
					defer func() {
						<-semaphore
						metrics.CheckQueueDepth.Dec()
						if r := recover(); r != nil {
							p.log.Error("Panic while checking photo", logger.Fields{
								"panic":       fmt.Sprintf("%v", r),
								"stack_trace": string(debug.Stack()),
							})
						}
					}()
					p.checkPhoto(ctx, eventBus, photo)
				}(photo)
			}
		}
	}()
	return nil
}

func (p *VisionPlugin) checkPhoto(ctx context.Context, eventBus *eventbus.EventBus, photo *models.PhotoInfo) {
	log := p.log.WithFields(logger.Fields{
		"photo_id": photo.ID,
		"source":   photo.Source,
		"file":     photo.FileName,
	})

	data, mimeType, err := imaging.Normalize(photo.Bytes, p.visionConfig.MaxImageDimension)
	if err != nil {
		log.Error("Failed to decode photo, skipping", logger.Fields{"error": err.Error()})
		return
	}
	if assessment, err := imaging.AssessQuality(data); err == nil {
		photo.Quality = assessment.Quality
		log.Debug("Photo quality assessed", logger.Fields{
			"quality":    string(assessment.Quality),
			"sharpness":  assessment.Sharpness,
			"contrast":   assessment.Contrast,
			"brightness": assessment.Brightness,
		})
	}

	result, err := p.checker.Check(ctx, data, mimeType)
	if err != nil {
		log.Error("Compliance check failed", logger.Fields{"error": err.Error()})
		return
	}

	report := result.Report
	if report.IsCompliant {
		log.Info("Photo compliant", logger.Fields{
			"compliance_score": report.ComplianceScore,
			"duration_ms":      result.Duration.Milliseconds(),
		})
	} else {
		log.Warn("Photo non-compliant", logger.Fields{
			"compliance_score": report.ComplianceScore,
			"violation_count":  len(report.Violations),
			"duration_ms":      result.Duration.Milliseconds(),
		})
		p.saveAnnotated(photo, report)
	}

	eventBus.Publish(constants.ReportTopic, eventbus.Event{
		Payload: &models.ReportInfo{
			PhotoID:   photo.ID,
			Source:    photo.Source,
			FileName:  photo.FileName,
			Provider:  p.checker.Provider(),
			Model:     p.visionConfig.Model,
			Report:    report,
			Warnings:  result.Warnings,
			Duration:  result.Duration,
			CheckedAt: time.Now(),
		},
	})
}

// saveAnnotated writes a copy of the photo with violation boxes drawn on it,
// mirroring the annotated_<name> files of the batch workflow.
func (p *VisionPlugin) saveAnnotated(photo *models.PhotoInfo, report *models.ComplianceReport) {
	if p.visionConfig.AnnotatedDir == "" || len(report.Violations) == 0 {
		return
	}
	annotated, err := imaging.Annotate(photo.Bytes, report.Violations)
	if err != nil {
		p.log.Error("Failed to annotate photo", logger.Fields{
			"photo_id": photo.ID,
			"error":    err.Error(),
		})
		return
	}
	if err := os.MkdirAll(p.visionConfig.AnnotatedDir, 0o755); err != nil {
		p.log.Error("Failed to create annotated directory", logger.Fields{"error": err.Error()})
		return
	}
	name := fmt.Sprintf("annotated_%s.png", photo.ID)
	if err := os.WriteFile(filepath.Join(p.visionConfig.AnnotatedDir, name), annotated, 0o644); err != nil {
		p.log.Error("Failed to save annotated photo", logger.Fields{"error": err.Error()})
		return
	}
	p.log.Debug("Annotated photo saved", logger.Fields{"file": name})
}

func (p *VisionPlugin) Stop(ctx context.Context) error {
	p.log.Info("Stopping vision checker plugin")
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
