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

// Package csvreport implements a handle plugin that appends every completed
// check to a CSV results file, suitable for spreadsheet review of a batch of
// delivery photos. It can additionally dump the full report JSON per photo.
package csvreport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/packwatch/packwatch/pkg/constants"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/plugin"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const (
	pluginName = constants.HandleCSVName
	pluginType = constants.HandlePluginType
)

var csvHeader = []string{
	"checked_at",
	"photo_id",
	"file_name",
	"compliance_score",
	"is_compliant",
	"violation_count",
	"image_quality",
	"summary",
}

func init() {
	plugin.PluginFactories[pluginName] = func() plugin.Plugin {
		return &CSVPlugin{
			log: logger.GetLogger().WithField("plugin", pluginName),
		}
	}
}

type CSVPlugin struct {
	log       logger.Logger
	csvConfig CSVConfig
	cancel    context.CancelFunc

	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

type CSVConfig struct {
	// OutputFile is the CSV results file; rows are appended across restarts
	OutputFile string `json:"outputFile"`
	// JSONDir, when set, receives one full report JSON file per photo
	JSONDir string `json:"jsonDir"`
}

func (p *CSVPlugin) Name() string { return pluginName }
func (p *CSVPlugin) Type() string { return pluginType }

func (p *CSVPlugin) loadConfig(setting string) error {
	if setting == "" {
		return errors.New("configuration cannot be empty")
	}
	var cfg CSVConfig
	if err := json.Unmarshal([]byte(setting), &cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if cfg.OutputFile == "" {
		return errors.New("outputFile configuration is required")
	}
	p.csvConfig = cfg
	return nil
}

func (p *CSVPlugin) Start(
	ctx context.Context,
	pluginConfig config.PluginConfig,
	eventBus *eventbus.EventBus,
) error {
	if err := p.loadConfig(pluginConfig.Settings); err != nil {
		p.log.Error("Failed to load configuration", logger.Fields{
			"error": err.Error(),
		})
		return err
	}

	if err := p.openOutput(); err != nil {
		return err
	}

	subscribe := eventBus.Subscribe(constants.ReportTopic)
	ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info("CSV report plugin started", logger.Fields{
		"output_file": p.csvConfig.OutputFile,
	})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("CSV report plugin panic", logger.Fields{
					"panic": fmt.Sprintf("%v", r),
				})
			}
		}()

		for {
			select {
			case event, ok := <-subscribe:
				if !ok {
					p.log.Info("Event subscription channel closed")
					return
				}

				info, ok := event.Payload.(*models.ReportInfo)
				if !ok {
					p.log.Error("Invalid event payload type", logger.Fields{
						"expected": "*models.ReportInfo",
						"actual":   fmt.Sprintf("%T", event.Payload),
					})
					continue
				}

				if err := p.appendRow(info); err != nil {
					p.log.Error("Failed to append CSV row", logger.Fields{
						"error":    err.Error(),
						"photo_id": info.PhotoID,
					})
				}
				if p.csvConfig.JSONDir != "" {
					if err := info.SaveToFile(p.csvConfig.JSONDir); err != nil {
						p.log.Error("Failed to write report JSON", logger.Fields{
							"error":    err.Error(),
							"photo_id": info.PhotoID,
						})
					}
				}
			case <-ctx.Done():
				p.log.Info("CSV report plugin stopping")
				return
			}
		}
	}()

	return nil
}

func (p *CSVPlugin) Stop(ctx context.Context) error {
	p.log.Info("Stopping CSV report plugin")
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w != nil {
		p.w.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// openOutput opens the results file in append mode and writes the header
// only when the file is new.
func (p *CSVPlugin) openOutput() error {
	if dir := filepath.Dir(p.csvConfig.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	stat, statErr := os.Stat(p.csvConfig.OutputFile)
	needHeader := statErr != nil || stat.Size() == 0

	file, err := os.OpenFile(p.csvConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	p.file = file
	p.w = csv.NewWriter(file)

	if needHeader {
		if err := p.w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		p.w.Flush()
	}
	return p.w.Error()
}

func (p *CSVPlugin) appendRow(info *models.ReportInfo) error {
	if info == nil || info.Report == nil {
		return errors.New("report is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	report := info.Report
	row := []string{
		info.CheckedAt.Format("2006-01-02 15:04:05"),
		info.PhotoID,
		info.FileName,
		strconv.Itoa(report.ComplianceScore),
		strconv.FormatBool(report.IsCompliant),
		strconv.Itoa(len(report.Violations)),
		string(report.ImageQuality),
		report.Summary,
	}
	if err := p.w.Write(row); err != nil {
		return err
	}
	p.w.Flush()
	return p.w.Error()
}
