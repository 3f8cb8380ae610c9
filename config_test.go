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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, DefaultShutdownTimeout, cfg.shutdownTimeout)
	assert.Equal(t, uint(0), cfg.apiPort)
	assert.Empty(t, cfg.dataDir)
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithCouncil("a.near", "b.near"),
		WithName("fono"),
		WithPurpose("music"),
		WithAPIHost("127.0.0.1"),
		WithAPIPort(8081),
		WithCallWorkers(2, 10),
		WithCallbackTimeout(5*time.Second),
		WithShutdownTimeout(time.Second),
	)
	assert.Equal(t, []string{"a.near", "b.near"}, cfg.council)
	assert.Equal(t, "fono", cfg.name)
	assert.Equal(t, "music", cfg.purpose)
	assert.Equal(t, "127.0.0.1", cfg.apiHost)
	assert.Equal(t, uint(8081), cfg.apiPort)
	assert.Equal(t, 2, cfg.callWorkers)
	assert.Equal(t, 10, cfg.callQueueSize)
	assert.Equal(t, 5*time.Second, cfg.callbackTimeout)
	assert.Equal(t, time.Second, cfg.shutdownTimeout)
}

func TestConfigValidate(t *testing.T) {
	testDefs := []struct {
		name  string
		opts  []ConfigOptionFunc
		valid bool
	}{
		{
			name:  "valid",
			opts:  []ConfigOptionFunc{WithCouncil("council.near")},
			valid: true,
		},
		{
			name: "no council",
		},
		{
			name: "bad council id",
			opts: []ConfigOptionFunc{WithCouncil("Council")},
		},
		{
			name: "negative weight",
			opts: []ConfigOptionFunc{
				WithCouncil("council.near"),
				WithWeights(map[string]decimal.Decimal{"a.near": decimal.NewFromInt(-1)}),
			},
		},
		{
			name: "caller and url",
			opts: []ConfigOptionFunc{
				WithCouncil("council.near"),
				WithCaller(&fakeCaller{}),
				WithMintServiceUrl("http://localhost:1234"),
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := New(NewConfig(testDef.opts...))
			if testDef.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
