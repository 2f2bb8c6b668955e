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

// Package provider adapts hosted multimodal model APIs behind a single
// capability: submit one image plus an instruction prompt, get the raw
// textual reply back. One adapter per provider, selected by configuration.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider submits an image prompt to a hosted multimodal model
type Provider interface {
	Name() string
	SubmitImagePrompt(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

// Config selects and configures a provider adapter. APIKey must already be
// resolved (no ${ENV} references at this layer).
type Config struct {
	Provider string
	Model    string
	APIKey   string
	APIBase  string
	APIPath  string
	Timeout  time.Duration
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultTimeout = 60 * time.Second
)

// New builds the provider adapter named by cfg.Provider
func New(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: API key is required", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case ProviderOpenAI:
		return newOpenAI(cfg, client), nil
	case ProviderGemini:
		return newGemini(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
