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

package fonodao

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const DefaultShutdownTimeout = 30 * time.Second

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	caller          extcall.Caller
	weights         map[string]decimal.Decimal
	dataDir         string
	name            string
	purpose         string
	apiHost         string
	mintServiceUrl  string
	council         []string
	apiPort         uint
	callWorkers     int
	callQueueSize   int
	callbackTimeout time.Duration
	shutdownTimeout time.Duration
	tracing         bool
	tracingStdout   bool
}

func (n *Node) configValidate() error {
	if len(n.config.council) == 0 {
		return errors.New("at least one council member is required")
	}
	for _, account := range n.config.council {
		if !ledger.ValidAccountID(account) {
			return fmt.Errorf("invalid council account id: %q", account)
		}
	}
	for account, weight := range n.config.weights {
		if !ledger.ValidAccountID(account) {
			return fmt.Errorf("invalid weight account id: %q", account)
		}
		if weight.IsNegative() {
			return fmt.Errorf("negative weight for %s: %s", account, weight)
		}
	}
	if n.config.caller != nil && n.config.mintServiceUrl != "" {
		return errors.New("an external caller and a mint service URL are mutually exclusive")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Connection config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new fonodao config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithCouncil specifies the council used to bootstrap the policy of a new DAO
func WithCouncil(council ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.council = append([]string(nil), council...)
	}
}

// WithName specifies the DAO name stored on first start
func WithName(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.name = name
	}
}

// WithPurpose specifies the DAO purpose stored on first start
func WithPurpose(purpose string) ConfigOptionFunc {
	return func(c *Config) {
		c.purpose = purpose
	}
}

// WithWeights specifies the static token weights used by token-weighted vote policies
func WithWeights(weights map[string]decimal.Decimal) ConfigOptionFunc {
	return func(c *Config) {
		c.weights = weights
	}
}

// WithAPIHost specifies the address the HTTP API binds to
func WithAPIHost(host string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiHost = host
	}
}

// WithAPIPort specifies the port of the HTTP API. The API is disabled when the port is 0
func WithAPIPort(port uint) ConfigOptionFunc {
	return func(c *Config) {
		c.apiPort = port
	}
}

// WithMintServiceUrl specifies the URL of the service that executes outbound calls
func WithMintServiceUrl(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.mintServiceUrl = url
	}
}

// WithCaller specifies the caller that executes outbound calls. It overrides the mint service URL
func WithCaller(caller extcall.Caller) ConfigOptionFunc {
	return func(c *Config) {
		c.caller = caller
	}
}

// WithCallbackTimeout specifies how long a single outbound call may take
func WithCallbackTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.callbackTimeout = timeout
	}
}

// WithCallWorkers specifies the outbound call worker pool size and queue size
func WithCallWorkers(workers int, queueSize int) ConfigOptionFunc {
	return func(c *Config) {
		c.callWorkers = workers
		c.callQueueSize = queueSize
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
