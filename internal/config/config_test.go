// Copyright 2025 Blink Labs Software
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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig() {
	globalConfig = defaultConfig()
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test-fonodao.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0o600))
	return tmpFile
}

func TestLoadConfigFile(t *testing.T) {
	resetGlobalConfig()
	tmpFile := writeConfigFile(t, `
databasePath: "/var/lib/fonodao"
apiPort: 9000
name: "fono"
purpose: "music"
council:
  - "council.near"
  - "other.near"
mintServiceUrl: "http://localhost:3000/call"
callbackTimeout: "10s"
weights:
  a.near: "100"
`)
	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/fonodao", cfg.DatabasePath)
	assert.Equal(t, uint(9000), cfg.APIPort)
	assert.Equal(t, []string{"council.near", "other.near"}, cfg.Council)
	assert.Equal(t, "http://localhost:3000/call", cfg.MintServiceUrl)
	// Defaults survive for keys the file does not set
	assert.Equal(t, uint(12799), cfg.MetricsPort)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)

	timeout, err := cfg.CallbackTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)
	weights, err := cfg.WeightsMap()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(weights["a.near"]))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	resetGlobalConfig()
	tmpFile := writeConfigFile(t, `
apiPort: 9000
council: ["council.near"]
`)
	t.Setenv("FONODAO_API_PORT", "9100")
	t.Setenv("FONODAO_DATABASE_PATH", "/tmp/fonodao")
	t.Setenv("FONODAO_MINT_SERVICE_URL", "http://mint")
	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, uint(9100), cfg.APIPort)
	assert.Equal(t, "/tmp/fonodao", cfg.DatabasePath)
	assert.Equal(t, "http://mint", cfg.MintServiceUrl)
}

func TestLoadConfigDaoAccountFallback(t *testing.T) {
	resetGlobalConfig()
	tmpFile := writeConfigFile(t, `daoAccount: "dao.near"`)
	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"dao.near"}, cfg.Council)
}

func TestLoadConfigErrors(t *testing.T) {
	testDefs := map[string]string{
		"no council":        `name: "x"`,
		"bad timeout":       "council: [\"a.near\"]\nshutdownTimeout: \"soon\"",
		"bad weight":        "council: [\"a.near\"]\nweights:\n  a.near: \"lots\"",
		"malformed yaml":    "council: [",
		"bad callback time": "council: [\"a.near\"]\ncallbackTimeout: \"-\"",
	}
	for name, content := range testDefs {
		t.Run(name, func(t *testing.T) {
			resetGlobalConfig()
			_, err := LoadConfig(writeConfigFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
