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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	draftsPrepared     prometheus.Counter
	mintsStarted       prometheus.Counter
	mintsCommitted     prometheus.Counter
	mintsFailed        prometheus.Counter
	revenueTables      prometheus.Counter
	payouts            prometheus.Counter
	payoutsSkipped     prometheus.Counter
	payoutRemainder    prometheus.Counter
	purchasesStarted   prometheus.Counter
	purchasesCommitted prometheus.Counter
	purchasesRefunded  prometheus.Counter
	transfers          *prometheus.CounterVec
	transfersFailed    prometheus.Counter
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.draftsPrepared = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_drafts_prepared_total",
		Help: "total number of drafts prepared",
	})
	m.mintsStarted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_mints_started_total",
		Help: "total number of mint calls dispatched",
	})
	m.mintsCommitted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_mints_committed_total",
		Help: "total number of mints committed to the ledger",
	})
	m.mintsFailed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_mints_failed_total",
		Help: "total number of mints reported as failed",
	})
	m.revenueTables = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_revenue_tables_set_total",
		Help: "total number of revenue tables created or altered",
	})
	m.payouts = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_payouts_total",
		Help: "total number of handles paid out",
	})
	m.payoutsSkipped = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_payouts_skipped_total",
		Help: "total number of handles skipped by a payout because the caller lacked rights",
	})
	m.payoutRemainder = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_payout_remainder_yocto_total",
		Help: "approximate total of rounding remainders kept by payouts",
	})
	m.purchasesStarted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_purchases_started_total",
		Help: "total number of purchase calls dispatched",
	})
	m.purchasesCommitted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_purchases_committed_total",
		Help: "total number of purchases committed to the ledger",
	})
	m.purchasesRefunded = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_purchases_refunded_total",
		Help: "total number of failed purchases refunded",
	})
	m.transfers = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_ledger_transfers_total",
			Help: "total number of transfers scheduled",
		},
		[]string{"kind"},
	)
	m.transfersFailed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_ledger_transfers_failed_total",
		Help: "total number of transfers reported as failed",
	})
}
