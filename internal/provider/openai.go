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

package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	openAIDefaultBase = "https://api.openai.com/v1"
	openAIDefaultPath = "/chat/completions"
	openAISystemRole  = "You are a package compliance analyst. Analyze delivery package images for retail branding compliance."
)

// openAIClient talks to the OpenAI chat completions API, or to any
// OpenAI-compatible gateway configured through APIBase.
type openAIClient struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func newOpenAI(cfg Config, client *http.Client) *openAIClient {
	base := cfg.APIBase
	if base == "" {
		base = openAIDefaultBase
	}
	path := cfg.APIPath
	if path == "" {
		path = openAIDefaultPath
	}
	return &openAIClient{
		apiURL: strings.TrimSuffix(base, "/") + path,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: client,
	}
}

func (c *openAIClient) Name() string { return ProviderOpenAI }

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// SubmitImagePrompt sends the prompt and the base64-encoded image as one user
// message and returns the first choice's content verbatim.
func (c *openAIClient) SubmitImagePrompt(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": openAISystemRole,
			},
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "text",
						"text": prompt,
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": fmt.Sprintf("data:%s;base64,%s",
								mimeType, base64.StdEncoding.EncodeToString(image)),
						},
					},
				},
			},
		},
		"temperature": 0.2,
		"max_tokens":  1000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API call failed with status %d: %s",
			resp.StatusCode, truncate(string(respBody), 512))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode API response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("API response contains no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
