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

package proposal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	submitted prometheus.Counter
	removed   prometheus.Counter
	votes     *prometheus.CounterVec
	resolved  *prometheus.CounterVec
	callbacks *prometheus.CounterVec
}

func (m *storeMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.submitted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_proposals_submitted_total",
		Help: "total number of proposals submitted",
	})
	m.removed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_proposals_removed_total",
		Help: "total number of proposals deleted",
	})
	m.votes = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_proposal_votes_total",
			Help: "total number of votes cast",
		},
		[]string{"vote"},
	)
	m.resolved = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_proposals_resolved_total",
			Help: "total number of proposals reaching a status other than in progress",
		},
		[]string{"status"},
	)
	m.callbacks = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_proposal_callbacks_total",
			Help: "total number of proposal execution results received",
		},
		[]string{"success"},
	)
}
