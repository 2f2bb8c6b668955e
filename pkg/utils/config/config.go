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

// Package config provides YAML configuration loading, secure value resolution
// and hot reload for the PackWatch service.
package config

// Config is the root configuration document
type Config struct {
	Logging LoggingConfig  `yaml:"logging" json:"logging"`
	Server  ServerConfig   `yaml:"server"  json:"server"`
	Metrics MetricsConfig  `yaml:"metrics" json:"metrics"`
	Checker CheckerConfig  `yaml:"checker" json:"checker"`
	Plugins []PluginConfig `yaml:"plugins" json:"plugins"`
}

// PluginConfig describes a single plugin instance. Settings is a JSON
// document interpreted by the plugin itself.
type PluginConfig struct {
	Name     string `yaml:"name"     json:"name"`
	Type     string `yaml:"type"     json:"type"`
	Enabled  bool   `yaml:"enabled"  json:"enabled"`
	Settings string `yaml:"settings" json:"settings"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig controls the HTTP API server
type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port"    json:"port"`
	Path    string `yaml:"path"    json:"path"`
}

// CheckerConfig configures the compliance checker used by the HTTP API.
// APIKey supports ${ENV_VAR} references resolved at load time.
type CheckerConfig struct {
	Provider            string `yaml:"provider"            json:"provider"`
	Model               string `yaml:"model"               json:"model"`
	APIKey              string `yaml:"apiKey"              json:"apiKey"`
	APIBase             string `yaml:"apiBase"             json:"apiBase"`
	APIPath             string `yaml:"apiPath"             json:"apiPath"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"      json:"timeoutSeconds"`
	ComplianceThreshold int    `yaml:"complianceThreshold" json:"complianceThreshold"`
	MaxImageDimension   int    `yaml:"maxImageDimension"   json:"maxImageDimension"`
}
