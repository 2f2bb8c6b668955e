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

// Package watcher implements the intake plugin that feeds the pipeline from
// a drop directory: every image file appearing there is published to the
// intake topic, which makes bulk processing a matter of copying files in.
package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/packwatch/packwatch/pkg/constants"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/metrics"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/plugin"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const (
	pluginName = constants.IntakeWatcherName
	pluginType = constants.IntakePluginType

	// settleDelay gives the writer time to finish before the file is read
	settleDelay = 500 * time.Millisecond
)

func init() {
	plugin.PluginFactories[pluginName] = func() plugin.Plugin {
		return &WatcherPlugin{
			log:  logger.GetLogger().WithField("plugin", pluginName),
			seen: make(map[string]struct{}),
		}
	}
}

// WatcherPlugin watches a drop directory for new delivery photos
type WatcherPlugin struct {
	log           logger.Logger
	watcherConfig WatcherConfig
	watcher       *fsnotify.Watcher
	cancel        context.CancelFunc

	mu   sync.Mutex
	seen map[string]struct{}
}

// WatcherConfig is the plugin's JSON settings document
type WatcherConfig struct {
	WatchDir     string `json:"watchDir"`
	ScanExisting bool   `json:"scanExisting"`
}

func (p *WatcherPlugin) Name() string { return pluginName }
func (p *WatcherPlugin) Type() string { return pluginType }

func (p *WatcherPlugin) loadConfig(setting string) error {
	if setting == "" {
		return errors.New("configuration cannot be empty")
	}
	var cfg WatcherConfig
	if err := json.Unmarshal([]byte(setting), &cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if cfg.WatchDir == "" {
		return errors.New("watchDir configuration is required")
	}
	p.watcherConfig = cfg
	return nil
}

// Start begins watching the drop directory. Existing files are optionally
// published once at startup so a pre-filled directory is not silently ignored.
func (p *WatcherPlugin) Start(
	ctx context.Context,
	pluginConfig config.PluginConfig,
	eventBus *eventbus.EventBus,
) error {
	if err := p.loadConfig(pluginConfig.Settings); err != nil {
		p.log.Error("Failed to load configuration", logger.Fields{"error": err.Error()})
		return err
	}

	if err := os.MkdirAll(p.watcherConfig.WatchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(p.watcherConfig.WatchDir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	p.watcher = fsWatcher

	ctx, p.cancel = context.WithCancel(ctx)

	p.log.Info("Photo intake watcher started", logger.Fields{
		"watch_dir": p.watcherConfig.WatchDir,
	})

	if p.watcherConfig.ScanExisting {
		go p.scanExisting(eventBus)
	}
	go p.watchLoop(ctx, eventBus)
	return nil
}

func (p *WatcherPlugin) Stop(ctx context.Context) error {
	p.log.Info("Stopping photo intake watcher")
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func (p *WatcherPlugin) watchLoop(ctx context.Context, eventBus *eventbus.EventBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isImageFile(event.Name) {
				go p.publishPhoto(eventBus, event.Name)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Error("File watcher error", logger.Fields{"error": err.Error()})
		}
	}
}

func (p *WatcherPlugin) scanExisting(eventBus *eventbus.EventBus) {
	entries, err := os.ReadDir(p.watcherConfig.WatchDir)
	if err != nil {
		p.log.Error("Failed to scan watch directory", logger.Fields{"error": err.Error()})
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && isImageFile(entry.Name()) {
			p.publishPhoto(eventBus, filepath.Join(p.watcherConfig.WatchDir, entry.Name()))
		}
	}
}

// publishPhoto reads one dropped file and publishes it to the intake topic.
// A file is published at most once even when the watcher reports several
// events for it while it is being written.
func (p *WatcherPlugin) publishPhoto(eventBus *eventbus.EventBus, path string) {
	p.mu.Lock()
	if _, dup := p.seen[path]; dup {
		p.mu.Unlock()
		return
	}
	p.seen[path] = struct{}{}
	p.mu.Unlock()

	time.Sleep(settleDelay)

	data, err := os.ReadFile(path)
	if err != nil {
		p.log.Error("Failed to read dropped photo", logger.Fields{
			"file":  path,
			"error": err.Error(),
		})
		return
	}
	if len(data) == 0 {
		p.log.Warn("Dropped photo is empty, skipping", logger.Fields{"file": path})
		return
	}

	photo := &models.PhotoInfo{
		ID:         uuid.NewString(),
		Source:     "watcher",
		FileName:   filepath.Base(path),
		MIMEType:   http.DetectContentType(data),
		Bytes:      data,
		ReceivedAt: time.Now(),
	}
	eventBus.Publish(constants.IntakePhotoTopic, eventbus.Event{Payload: photo})
	metrics.PhotosIngestedTotal.WithLabelValues("watcher").Inc()

	p.log.Info("Photo ingested", logger.Fields{
		"photo_id": photo.ID,
		"file":     photo.FileName,
		"bytes":    len(data),
	})
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
