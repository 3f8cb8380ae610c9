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
	"github.com/shopspring/decimal"
)

// Weights reports delegated token weights. Token-weighted vote policies and
// Member roles use it.
type Weights interface {
	Weight(account string) decimal.Decimal
	TotalSupply() decimal.Decimal
}

// StaticWeights is a fixed weight per account
type StaticWeights map[string]decimal.Decimal

func (w StaticWeights) Weight(account string) decimal.Decimal {
	if amount, ok := w[account]; ok {
		return amount
	}
	return decimal.Zero
}

func (w StaticWeights) TotalSupply() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range w {
		total = total.Add(amount)
	}
	return total
}
