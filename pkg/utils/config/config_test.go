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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

const sampleConfig = `
logging:
  level: debug
server:
  port: 8088
metrics:
  enabled: true
checker:
  provider: gemini
  model: gemini-2.0-flash
  apiKey: ${PACKWATCH_TEST_API_KEY}
plugins:
  - name: Vision
    type: checker
    enabled: true
    settings: '{"maxWorkers": 2}'
  - name: Webhook
    type: handle
    enabled: false
    settings: '{"webhookURL": "https://example.com/hook"}'
`

func writeConfig(dir, content string) string {
	path := filepath.Join(dir, "config.yaml")
	ExpectWithOffset(1, os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("LoadConfig", func() {
	It("parses the document and keeps plugin settings as raw JSON", func() {
		path := writeConfig(GinkgoT().TempDir(), sampleConfig)

		cfg, err := LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Logging.Level).To(Equal("debug"))
		Expect(cfg.Server.Port).To(Equal(8088))
		Expect(cfg.Checker.Provider).To(Equal("gemini"))
		Expect(cfg.Plugins).To(HaveLen(2))
		Expect(cfg.Plugins[0].Name).To(Equal("Vision"))
		Expect(cfg.Plugins[1].Enabled).To(BeFalse())

		var settings map[string]any
		Expect(json.Unmarshal([]byte(cfg.Plugins[0].Settings), &settings)).To(Succeed())
		Expect(settings).To(HaveKeyWithValue("maxWorkers", 2.0))
	})

	It("applies defaults for omitted sections", func() {
		path := writeConfig(GinkgoT().TempDir(), "checker:\n  provider: openai\n")

		cfg, err := LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Logging.Level).To(Equal("info"))
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Metrics.Port).To(Equal(9090))
		Expect(cfg.Metrics.Path).To(Equal("/metrics"))
		Expect(cfg.Checker.TimeoutSeconds).To(Equal(60))
		Expect(cfg.Checker.ComplianceThreshold).To(Equal(50))
		Expect(cfg.Checker.MaxImageDimension).To(Equal(2048))
	})

	It("rejects an empty path", func() {
		_, err := LoadConfig("")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a missing file", func() {
		_, err := LoadConfig(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects malformed YAML", func() {
		path := writeConfig(GinkgoT().TempDir(), "plugins: [\n")
		_, err := LoadConfig(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Loader", func() {
	It("detects content changes between loads", func() {
		dir := GinkgoT().TempDir()
		path := writeConfig(dir, sampleConfig)
		loader := NewLoader(path)

		_, err := loader.Load()
		Expect(err).NotTo(HaveOccurred())

		changed, err := loader.HasChanged()
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())

		writeConfig(dir, sampleConfig+"\n# touched\n")
		changed, err = loader.HasChanged()
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	})

	It("exposes the config path and directory", func() {
		loader := NewLoader("/etc/packwatch/config.yaml")
		Expect(loader.GetConfigPath()).To(Equal("/etc/packwatch/config.yaml"))
		Expect(loader.GetConfigDir()).To(Equal("/etc/packwatch"))
	})
})

var _ = Describe("GetSecureValue", func() {
	It("resolves ${VAR} references from the environment", func() {
		GinkgoT().Setenv("PACKWATCH_TEST_API_KEY", "sk-test-123")
		value, err := GetSecureValue("${PACKWATCH_TEST_API_KEY}")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("sk-test-123"))
	})

	It("fails when the referenced variable is unset", func() {
		_, err := GetSecureValue("${PACKWATCH_TEST_UNSET_VAR}")
		Expect(err).To(HaveOccurred())
	})

	It("passes plain values through unchanged", func() {
		value, err := GetSecureValue("plain-key")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("plain-key"))
	})
})
