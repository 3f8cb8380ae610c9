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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "fonodao.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultCallbackTimeout = "30s"
	envPrefix              = "fonodao"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath    string   `yaml:"databasePath"    split_words:"true"`
	BindAddr        string   `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string   `yaml:"shutdownTimeout" split_words:"true"`
	DaoAccount      string   `yaml:"daoAccount"      split_words:"true"`
	Name            string   `yaml:"name"`
	Purpose         string   `yaml:"purpose"`
	Council         []string `yaml:"council"`
	MintServiceUrl  string   `yaml:"mintServiceUrl"  envconfig:"MINT_SERVICE_URL"`
	CallbackTimeout string   `yaml:"callbackTimeout" split_words:"true"`
	APIPort         uint     `yaml:"apiPort"         envconfig:"API_PORT"`
	MetricsPort     uint     `yaml:"metricsPort"     split_words:"true"`
	CallWorkers     int      `yaml:"callWorkers"     split_words:"true"`
	CallQueueSize   int      `yaml:"callQueueSize"   split_words:"true"`
	Tracing         bool     `yaml:"tracing"`
	TracingStdout   bool     `yaml:"tracingStdout"   split_words:"true"`
	// Weights are the static token balances used by token-weighted vote
	// policies, in the smallest unit
	Weights map[string]string `yaml:"weights"`
}

var globalConfig = defaultConfig()

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".fonodao",
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		Name:            "fonodao",
		CallbackTimeout: DefaultCallbackTimeout,
		APIPort:         8080,
		MetricsPort:     12799,
		CallWorkers:     4,
		CallQueueSize:   100,
	}
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.fonodao/fonodao.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".fonodao", "fonodao.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/fonodao/fonodao.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/fonodao/fonodao.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process(envPrefix, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

func (c *Config) validate() error {
	if len(c.Council) == 0 {
		if c.DaoAccount == "" {
			return errors.New("no council configured")
		}
		// A DAO without an explicit council is administered by its own account
		c.Council = []string{c.DaoAccount}
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.CallbackTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.WeightsMap(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return 0, nil
	}
	ret, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return ret, nil
}

func (c *Config) CallbackTimeoutDuration() (time.Duration, error) {
	if c.CallbackTimeout == "" {
		return 0, nil
	}
	ret, err := time.ParseDuration(c.CallbackTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid callback timeout: %w", err)
	}
	return ret, nil
}

// WeightsMap parses the configured token weights
func (c *Config) WeightsMap() (map[string]decimal.Decimal, error) {
	if len(c.Weights) == 0 {
		return nil, nil
	}
	ret := make(map[string]decimal.Decimal, len(c.Weights))
	for account, value := range c.Weights {
		weight, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %s: %w", account, err)
		}
		ret[account] = weight
	}
	return ret, nil
}
