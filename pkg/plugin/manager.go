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

package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const (
	// PluginStopTimeout bounds how long StopAll waits for plugins to shut down
	PluginStopTimeout = 20 * time.Second
)

// PluginFactories maps plugin names to their constructors. Plugin packages
// register themselves here from init, triggered by blank imports in main.
var PluginFactories = make(map[string]func() Plugin)

type pluginInstance struct {
	plugin Plugin
	config config.PluginConfig
}

// Manager owns plugin lifecycle: loading from configuration, concurrent
// startup and graceful shutdown.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*pluginInstance
	eventBus  *eventbus.EventBus
}

// NewManager creates a plugin manager bound to the given event bus
func NewManager(eventBus *eventbus.EventBus) *Manager {
	return &Manager{
		instances: make(map[string]*pluginInstance),
		eventBus:  eventBus,
	}
}

// LoadPlugins instantiates every configured plugin that has a registered
// factory. Unknown names are logged and skipped so a config written for a
// build with more plugins still starts.
func (m *Manager) LoadPlugins(pluginConfigs []config.PluginConfig) error {
	log := logger.GetLogger()
	log.Info("Loading plugins", logger.Fields{"count": len(pluginConfigs)})
	for _, pluginConfig := range pluginConfigs {
		if err := m.LoadPlugin(pluginConfig); err != nil {
			log.Error("Failed to load plugin", logger.Fields{
				"plugin": pluginConfig.Name,
				"error":  err.Error(),
			})
		}
	}
	return nil
}

// LoadPlugin instantiates a single plugin from its configuration
func (m *Manager) LoadPlugin(pluginConfig config.PluginConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := logger.GetLogger()

	factory, exists := PluginFactories[pluginConfig.Name]
	if !exists {
		log.Warn("Plugin factory not found", logger.Fields{
			"plugin":    pluginConfig.Name,
			"available": registeredFactoryNames(),
		})
		return nil
	}

	if _, exists := m.instances[pluginConfig.Name]; exists {
		log.Debug("Plugin already loaded", logger.Fields{"plugin": pluginConfig.Name})
		return nil
	}

	m.instances[pluginConfig.Name] = &pluginInstance{
		plugin: factory(),
		config: pluginConfig,
	}

	log.Info("Plugin loaded", logger.Fields{
		"plugin":  pluginConfig.Name,
		"type":    pluginConfig.Type,
		"enabled": pluginConfig.Enabled,
	})
	return nil
}

func registeredFactoryNames() []string {
	names := make([]string, 0, len(PluginFactories))
	for name := range PluginFactories {
		names = append(names, name)
	}
	return names
}

// StartAll starts every enabled plugin concurrently and collects failures
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := logger.GetLogger()

	var wg sync.WaitGroup
	errChan := make(chan error, len(m.instances))
	for name, instance := range m.instances {
		if !instance.config.Enabled {
			log.Debug("Plugin disabled, skipping", logger.Fields{"plugin": name})
			continue
		}
		wg.Add(1)
		go func(name string, instance *pluginInstance) {
			defer wg.Done()
			pluginLog := log.WithField("plugin", name)
			pluginLog.Info("Starting plugin")
			if err := instance.plugin.Start(ctx, instance.config, m.eventBus); err != nil {
				pluginLog.Error("Plugin failed to start", logger.Fields{"error": err.Error()})
				errChan <- fmt.Errorf("plugin %s failed to start: %w", name, err)
				return
			}
			pluginLog.Info("Plugin started")
		}(name, instance)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to start %d plugins: %v", len(errs), errs)
	}
	return nil
}

// StopAll stops every loaded plugin, bounded by PluginStopTimeout
func (m *Manager) StopAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), PluginStopTimeout)
	defer cancel()

	m.mu.RLock()
	defer m.mu.RUnlock()
	log := logger.GetLogger()
	log.Info("Stopping all plugins")
	for name, instance := range m.instances {
		if err := instance.plugin.Stop(ctx); err != nil {
			log.Error("Error stopping plugin", logger.Fields{
				"plugin": name,
				"error":  err.Error(),
			})
		} else {
			log.Debug("Plugin stopped", logger.Fields{"plugin": name})
		}
	}
	log.Info("All plugins stopped")
	return nil
}
