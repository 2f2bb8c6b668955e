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

// Package webhook implements a handle plugin that alerts a Lark (Feishu)
// webhook whenever a delivery photo fails compliance. Compliant reports are
// not forwarded.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/packwatch/packwatch/pkg/constants"
	"github.com/packwatch/packwatch/pkg/eventbus"
	"github.com/packwatch/packwatch/pkg/logger"
	"github.com/packwatch/packwatch/pkg/models"
	"github.com/packwatch/packwatch/pkg/plugin"
	"github.com/packwatch/packwatch/pkg/utils/config"
)

const (
	pluginName = constants.HandleWebhookName
	pluginType = constants.HandlePluginType

	defaultTimeoutSeconds = 30
)

func init() {
	plugin.PluginFactories[pluginName] = func() plugin.Plugin {
		return &WebhookPlugin{
			log: logger.GetLogger().WithField("plugin", pluginName),
		}
	}
}

type WebhookPlugin struct {
	log           logger.Logger
	webhookConfig WebhookConfig
	notifier      *Notifier
	cancel        context.CancelFunc
}

type WebhookConfig struct {
	WebhookURL     string `json:"webhookURL"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func (p *WebhookPlugin) Name() string { return pluginName }
func (p *WebhookPlugin) Type() string { return pluginType }

func (p *WebhookPlugin) loadConfig(setting string) error {
	p.webhookConfig = WebhookConfig{TimeoutSeconds: defaultTimeoutSeconds}

	if setting == "" {
		return errors.New("configuration cannot be empty")
	}
	var configFromJSON WebhookConfig
	if err := json.Unmarshal([]byte(setting), &configFromJSON); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if configFromJSON.WebhookURL == "" {
		return errors.New("webhookURL configuration cannot be empty")
	}

	url, err := config.GetSecureValue(configFromJSON.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to resolve webhook URL: %w", err)
	}
	p.webhookConfig.WebhookURL = url
	if configFromJSON.TimeoutSeconds > 0 {
		p.webhookConfig.TimeoutSeconds = configFromJSON.TimeoutSeconds
	}
	return nil
}

func (p *WebhookPlugin) Start(
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

	p.notifier = NewNotifier(
		p.webhookConfig.WebhookURL,
		time.Duration(p.webhookConfig.TimeoutSeconds)*time.Second,
	)

	subscribe := eventBus.Subscribe(constants.ReportTopic)
	ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info("Webhook plugin started")

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("Webhook plugin panic", logger.Fields{
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

				if err := p.notifier.SendComplianceAlert(info); err != nil {
					p.log.Error("Failed to send webhook notification", logger.Fields{
						"error":    err.Error(),
						"photo_id": info.PhotoID,
					})
				}
			case <-ctx.Done():
				p.log.Info("Webhook plugin stopping")
				return
			}
		}
	}()

	return nil
}

func (p *WebhookPlugin) Stop(ctx context.Context) error {
	p.log.Info("Stopping webhook plugin")
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
