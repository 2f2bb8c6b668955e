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

package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/packwatch/packwatch/pkg/logger"
)

// UpdateHandler is called when the configuration file is updated
type UpdateHandler func(*Config)

// Watcher watches the configuration file for changes and triggers updates.
// Watching the containing directory instead of the file itself survives
// editors that replace the file on save.
type Watcher struct {
	log     logger.Logger
	loader  *Loader
	watcher *fsnotify.Watcher
	handler UpdateHandler
}

// NewWatcher creates a new configuration file watcher
func NewWatcher(loader *Loader, handler UpdateHandler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		log:     logger.GetLogger().WithField("component", "config-watcher"),
		loader:  loader,
		watcher: fsWatcher,
		handler: handler,
	}, nil
}

// Start begins watching the configuration file for changes
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.loader.GetConfigDir()); err != nil {
		return err
	}
	w.log.Info("Started monitoring configuration file", logger.Fields{
		"path": w.loader.GetConfigPath(),
	})
	go w.watchLoop(ctx)
	return nil
}

// Stop stops the configuration watcher
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.handleFileChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("File watcher error", logger.Fields{"error": err.Error()})
		}
	}
}

func (w *Watcher) handleFileChange() {
	changed, err := w.loader.HasChanged()
	if err != nil {
		w.log.Error("Failed to check configuration file changes", logger.Fields{
			"error": err.Error(),
		})
		return
	}
	if !changed {
		return
	}

	w.log.Info("Configuration file changed, reloading", logger.Fields{
		"file": w.loader.GetConfigPath(),
	})

	newConfig, err := w.loader.Load()
	if err != nil {
		w.log.Error("Failed to reload configuration, keeping previous one", logger.Fields{
			"error": err.Error(),
		})
		return
	}

	if w.handler != nil {
		w.handler(newConfig)
	}
}
