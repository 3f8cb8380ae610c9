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

// Package dao runs the DAO's entry points. Each entry point takes the engine
// lock, runs in a single database transaction spanning the blob and metadata
// stores, and hands any external calls to the orchestrator once the
// transaction commits.
package dao

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/types"
	"github.com/blinklabs-io/fonodao/event"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrNoDatabase     = errors.New("no database configured")
	ErrNoOrchestrator = errors.New("no external call orchestrator configured")
)

type Config struct {
	Logger       *slog.Logger
	DB           *database.Database
	EventBus     *event.EventBus
	Orchestrator *extcall.Orchestrator
	PromRegistry prometheus.Registerer
	// Weights provides delegated token weights. Nil means nobody holds any.
	Weights Weights
	// Council, Name and Purpose seed the policy and config of a new DAO
	Council []string
	Name    string
	Purpose string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type DAO struct {
	config    Config
	mu        sync.Mutex
	ledger    *ledger.Ledger
	proposals *proposal.Store
	metrics   daoMetrics
}

// effects collects what an entry point does outside the database. They are
// applied only after the transaction commits.
type effects struct {
	calls  []extcall.Call
	events []event.Event
}

func (fx *effects) schedule(calls ...extcall.Call) {
	fx.calls = append(fx.calls, calls...)
}

func (fx *effects) publish(eventType event.EventType, data any) {
	fx.events = append(fx.events, event.NewEvent(eventType, data))
}

// New returns a DAO over the configured stores. The policy and config are
// initialized from Council, Name and Purpose when the database is empty.
func New(cfg Config) (*DAO, error) {
	if cfg.DB == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Orchestrator == nil {
		return nil, ErrNoOrchestrator
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Weights == nil {
		cfg.Weights = StaticWeights{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d := &DAO{
		config: cfg,
		ledger: ledger.New(ledger.LedgerConfig{
			Logger:       cfg.Logger,
			DB:           cfg.DB,
			Orchestrator: cfg.Orchestrator,
			PromRegistry: cfg.PromRegistry,
		}),
		proposals: proposal.NewStore(proposal.StoreConfig{
			Logger:       cfg.Logger,
			DB:           cfg.DB,
			PromRegistry: cfg.PromRegistry,
		}),
	}
	d.metrics.init(cfg.PromRegistry)
	if err := d.bootstrap(); err != nil {
		return nil, err
	}
	cfg.Orchestrator.SetCompletionFunc(d.CompleteCall)
	return d, nil
}

// bootstrap stores the initial policy and config if none exist yet. The
// initial policy is stored in the legacy council-only form and upgraded on
// every load.
func (d *DAO) bootstrap() error {
	return d.config.DB.Transaction(true).Do(func(txn *database.Txn) error {
		if _, err := d.config.DB.BlobGet(txn, []byte(types.PolicyBlobKey)); err == nil {
			return nil
		} else if !errors.Is(err, types.ErrBlobKeyNotFound) {
			return err
		}
		for _, account := range d.config.Council {
			if !ledger.ValidAccountID(account) {
				return fmt.Errorf("council member: %w: %q", ledger.ErrInvalidAccountID, account)
			}
		}
		polData, err := cbor.Marshal(policy.Legacy(d.config.Council))
		if err != nil {
			return err
		}
		if err := d.config.DB.BlobSet(txn, []byte(types.PolicyBlobKey), polData); err != nil {
			return err
		}
		if err := d.saveConfig(txn, proposal.Config{
			Name:    d.config.Name,
			Purpose: d.config.Purpose,
		}); err != nil {
			return err
		}
		d.config.Logger.Info(
			"initialized new DAO",
			"component", "dao",
			"name", d.config.Name,
			"council", d.config.Council,
		)
		return nil
	})
}

// Ledger returns the asset ledger
func (d *DAO) Ledger() *ledger.Ledger {
	return d.ledger
}

func (d *DAO) loadPolicy(txn *database.Txn) (*policy.Policy, error) {
	data, err := d.config.DB.BlobGet(txn, []byte(types.PolicyBlobKey))
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return policy.Decode(data)
}

func (d *DAO) savePolicy(txn *database.Txn, pol *policy.Policy) error {
	data, err := policy.Encode(pol)
	if err != nil {
		return err
	}
	return d.config.DB.BlobSet(txn, []byte(types.PolicyBlobKey), data)
}

func (d *DAO) loadConfig(txn *database.Txn) (proposal.Config, error) {
	var ret proposal.Config
	data, err := d.config.DB.BlobGet(txn, []byte(types.ConfigBlobKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return ret, nil
		}
		return ret, err
	}
	if err := cbor.Unmarshal(data, &ret); err != nil {
		return ret, fmt.Errorf("decode config: %w", err)
	}
	return ret, nil
}

func (d *DAO) saveConfig(txn *database.Txn, cfg proposal.Config) error {
	data, err := cbor.Marshal(cfg)
	if err != nil {
		return err
	}
	return d.config.DB.BlobSet(txn, []byte(types.ConfigBlobKey), data)
}

func (d *DAO) userInfo(account string) policy.UserInfo {
	return policy.UserInfo{
		AccountID: account,
		Amount:    d.config.Weights.Weight(account),
	}
}

// update runs fn as one entry point invocation: under the engine lock, in a
// read-write transaction, with the current policy. Scheduled calls are
// dispatched and events published only if the transaction commits.
func (d *DAO) update(
	ctx context.Context,
	entry string,
	fn func(txn *database.Txn, pol *policy.Policy, fx *effects, now time.Time) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fx := &effects{}
	now := d.config.Now()
	err := d.config.DB.Transaction(true).Do(func(txn *database.Txn) error {
		pol, err := d.loadPolicy(txn)
		if err != nil {
			return err
		}
		return fn(txn, pol, fx, now)
	})
	if err != nil {
		d.metrics.entryPoints.WithLabelValues(entry, "error").Inc()
		return err
	}
	d.metrics.entryPoints.WithLabelValues(entry, "ok").Inc()
	d.apply(fx)
	return nil
}

// view runs fn in a read-only transaction with the current policy
func (d *DAO) view(fn func(txn *database.Txn, pol *policy.Policy) error) error {
	txn := d.config.DB.Transaction(false)
	defer txn.Release()
	pol, err := d.loadPolicy(txn)
	if err != nil {
		return err
	}
	return fn(txn, pol)
}

func (d *DAO) apply(fx *effects) {
	if len(fx.calls) > 0 {
		d.config.Orchestrator.Dispatch(fx.calls...)
	}
	if d.config.EventBus == nil {
		return
	}
	for _, call := range fx.calls {
		d.config.EventBus.PublishAsync(
			event.CallScheduledEventType,
			event.NewEvent(
				event.CallScheduledEventType,
				event.CallScheduledEvent{
					CallID:   call.ID,
					Purpose:  call.Purpose,
					Receiver: call.Receiver,
					Method:   call.Method,
				},
			),
		)
	}
	for _, evt := range fx.events {
		d.config.EventBus.PublishAsync(evt.Type, evt)
	}
}
