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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/fonodao"
	"github.com/blinklabs-io/fonodao/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeConfig translates the file/environment configuration into node options
func NodeConfig(
	cfg *config.Config,
	logger *slog.Logger,
	registry prometheus.Registerer,
) (fonodao.Config, error) {
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return fonodao.Config{}, err
	}
	if shutdownTimeout == 0 {
		shutdownTimeout = fonodao.DefaultShutdownTimeout
	}
	callbackTimeout, err := cfg.CallbackTimeoutDuration()
	if err != nil {
		return fonodao.Config{}, err
	}
	weights, err := cfg.WeightsMap()
	if err != nil {
		return fonodao.Config{}, err
	}
	return fonodao.NewConfig(
		fonodao.WithLogger(logger),
		fonodao.WithDatabasePath(cfg.DatabasePath),
		fonodao.WithCouncil(cfg.Council...),
		fonodao.WithName(cfg.Name),
		fonodao.WithPurpose(cfg.Purpose),
		fonodao.WithWeights(weights),
		fonodao.WithAPIHost(cfg.BindAddr),
		fonodao.WithAPIPort(cfg.APIPort),
		fonodao.WithMintServiceUrl(cfg.MintServiceUrl),
		fonodao.WithCallbackTimeout(callbackTimeout),
		fonodao.WithCallWorkers(cfg.CallWorkers, cfg.CallQueueSize),
		fonodao.WithShutdownTimeout(shutdownTimeout),
		fonodao.WithTracing(cfg.Tracing),
		fonodao.WithTracingStdout(cfg.TracingStdout),
		fonodao.WithPrometheusRegistry(registry),
	), nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	nodeCfg, err := NodeConfig(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	shutdownTimeout, _ := cfg.ShutdownTimeoutDuration()
	if shutdownTimeout == 0 {
		shutdownTimeout = fonodao.DefaultShutdownTimeout
	}
	n, err := fonodao.New(nodeCfg)
	if err != nil {
		return err
	}
	// Metrics listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsAddr := net.JoinHostPort(
			cfg.BindAddr,
			fmt.Sprintf("%d", cfg.MetricsPort),
		)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
			}
		}()
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	runErr := n.Run(signalCtx)
	if runErr != nil {
		logger.Error("node error", "error", runErr, "component", "node")
	} else {
		logger.Info("signal received, initiating graceful shutdown", "component", "node")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("shutdown complete", "component", "node")
	return nil
}
