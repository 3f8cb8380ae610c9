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

package extcall

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type orchestratorMetrics struct {
	scheduled      *prometheus.CounterVec
	completed      *prometheus.CounterVec
	dispatchErrors prometheus.Counter
	pending        prometheus.Gauge
}

func (m *orchestratorMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.scheduled = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_external_calls_scheduled_total",
			Help: "total number of external calls scheduled",
		},
		[]string{"purpose"},
	)
	m.completed = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fonodao_external_calls_completed_total",
			Help: "total number of external call completions",
		},
		[]string{"purpose", "success"},
	)
	m.dispatchErrors = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "fonodao_external_call_dispatch_errors_total",
		Help: "total number of external calls that could not be delivered",
	})
	m.pending = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "fonodao_external_calls_pending",
		Help: "number of external calls awaiting completion",
	})
}
