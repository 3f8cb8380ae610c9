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

// Package ledger implements the asset lifecycle: drafts, minting, the handle
// index, income records, revenue tables, payouts, purchases and transfers.
//
// Every operation runs inside a database.Txn owned by the caller. Operations
// that need the external system schedule a call with the orchestrator and
// return it. The caller dispatches returned calls after its transaction
// commits.
package ledger

import (
	"io"
	"log/slog"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/plugin/metadata"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/prometheus/client_golang/prometheus"
)

// Metadata counter names
const (
	draftNonceCounter        = "draft_nonce"
	handleCounter            = "tree_index"
	failedTransactionCounter = "failed_transaction"
)

type LedgerConfig struct {
	Logger       *slog.Logger
	DB           *database.Database
	Orchestrator *extcall.Orchestrator
	PromRegistry prometheus.Registerer
}

type Ledger struct {
	config  LedgerConfig
	metrics ledgerMetrics
}

func New(cfg LedgerConfig) *Ledger {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	l := &Ledger{
		config: cfg,
	}
	l.metrics.init(cfg.PromRegistry)
	return l
}

func (l *Ledger) store() metadata.MetadataStore {
	return l.config.DB.Metadata()
}

func (l *Ledger) logger() *slog.Logger {
	return l.config.Logger
}
