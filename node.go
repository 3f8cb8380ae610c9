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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/fonodao/api"
	"github.com/blinklabs-io/fonodao/dao"
	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/event"
	"github.com/blinklabs-io/fonodao/extcall"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Node struct {
	config         Config
	db             *database.Database
	eventBus       *event.EventBus
	orchestrator   *extcall.Orchestrator
	dao            *dao.DAO
	api            *api.API
	tracerProvider *sdktrace.TracerProvider
	done           chan struct{}
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// DAO returns the engine once the node is running
func (n *Node) DAO() *dao.DAO {
	return n.dao
}

// EventBus returns the node's event bus once the node is running
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Ready opens the stores and wires the engine without serving anything
func (n *Node) Ready() error {
	if n.dao != nil {
		return nil
	}
	// Configure tracing
	if n.config.tracing && n.tracerProvider == nil {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	db, err := database.New(&database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	n.eventBus = event.NewEventBus(n.config.promRegistry, n.config.logger)
	caller := n.config.caller
	if caller == nil && n.config.mintServiceUrl != "" {
		caller = extcall.NewHTTPCaller(
			n.config.mintServiceUrl,
			n.config.callbackTimeout,
		)
	}
	n.orchestrator = extcall.NewOrchestrator(
		extcall.OrchestratorConfig{
			Logger:       n.config.logger,
			DB:           n.db,
			PromRegistry: n.config.promRegistry,
			Caller:       caller,
			Workers:      n.config.callWorkers,
			QueueSize:    n.config.callQueueSize,
		},
	)
	var weights dao.Weights
	if len(n.config.weights) > 0 {
		weights = dao.StaticWeights(n.config.weights)
	}
	d, err := dao.New(
		dao.Config{
			Logger:       n.config.logger,
			DB:           n.db,
			EventBus:     n.eventBus,
			Orchestrator: n.orchestrator,
			PromRegistry: n.config.promRegistry,
			Weights:      weights,
			Council:      n.config.council,
			Name:         n.config.name,
			Purpose:      n.config.purpose,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load DAO: %w", err)
	}
	n.dao = d
	return nil
}

// Run starts the node and blocks until ctx is cancelled or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	// Wait for shutdown
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Start opens the stores, starts call delivery and serves the API
func (n *Node) Start(ctx context.Context) error {
	if err := n.Ready(); err != nil {
		return err
	}
	// Start delivering outbound calls, including those left over from a
	// previous run
	if err := n.orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start external call orchestrator: %w", err)
	}
	if n.config.apiPort > 0 {
		n.api = api.NewAPI(
			api.APIConfig{
				Logger: n.config.logger,
				DAO:    n.dao,
				Host:   n.config.apiHost,
				Port:   n.config.apiPort,
			},
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
	)
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		n.config.shutdownTimeout,
	)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Stop accepting new work
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("API shutdown: %w", stopErr))
		}
	}

	// Undelivered calls stay pending and are resumed on the next start
	if n.orchestrator != nil {
		n.orchestrator.Stop()
	}

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	if n.tracerProvider != nil {
		if traceErr := n.tracerProvider.Shutdown(ctx); traceErr != nil {
			err = errors.Join(err, fmt.Errorf("tracer shutdown: %w", traceErr))
		}
	}

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
