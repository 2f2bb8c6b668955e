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
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses the YAML configuration file at configPath
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Checker.Provider == "" {
		cfg.Checker.Provider = "openai"
	}
	if cfg.Checker.Model == "" {
		cfg.Checker.Model = "gpt-4o"
	}
	if cfg.Checker.TimeoutSeconds <= 0 {
		cfg.Checker.TimeoutSeconds = 60
	}
	if cfg.Checker.ComplianceThreshold <= 0 {
		cfg.Checker.ComplianceThreshold = 50
	}
	if cfg.Checker.MaxImageDimension <= 0 {
		cfg.Checker.MaxImageDimension = 2048
	}
}

// Loader loads a configuration file and tracks content changes for hot reload
type Loader struct {
	configPath string
	lastHash   [sha256.Size]byte
}

// NewLoader creates a loader for the given configuration file path
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// GetConfigPath returns the watched configuration file path
func (l *Loader) GetConfigPath() string {
	return l.configPath
}

// GetConfigDir returns the directory containing the configuration file
func (l *Loader) GetConfigDir() string {
	return filepath.Dir(l.configPath)
}

// Load reads the configuration file and records its content hash
func (l *Loader) Load() (*Config, error) {
	cfg, err := LoadConfig(l.configPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	l.lastHash = sha256.Sum256(data)
	return cfg, nil
}

// HasChanged reports whether the file content differs from the last Load
func (l *Loader) HasChanged() (bool, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return sha256.Sum256(data) != l.lastHash, nil
}
