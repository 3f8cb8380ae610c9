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

package dao

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type daoMetrics struct {
	entryPoints      *prometheus.CounterVec
	callsCompleted   *prometheus.CounterVec
	ignoredCallbacks prometheus.Counter
}

func (m *daoMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.entryPoints = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_entry_points_total",
			Help: "total entry point invocations by entry point and result",
		},
		[]string{"entry", "result"},
	)
	m.callsCompleted = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_calls_completed_total",
			Help: "total external call completions applied by purpose and success",
		},
		[]string{"purpose", "success"},
	)
	m.ignoredCallbacks = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_proposal_callbacks_ignored_total",
		Help: "call completions for proposals no longer awaiting a result",
	})
}
