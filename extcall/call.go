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

// Package extcall records outbound calls to the external minting and trading
// system and delivers each call's completion exactly once.
package extcall

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// Call purposes
const (
	PurposeMint     = "mint"
	PurposeBuy      = "buy"
	PurposeTransfer = "transfer"
	PurposeProposal = "proposal"
)

// Outbound call constants
const (
	MintMethod     = "mint_root"
	BuyMethod      = "buy_nft_from_vault"
	TransferMethod = "transfer"

	// MintGas and BuyGas are 100 Tgas
	MintGas uint64 = 100_000_000_000_000
	BuyGas  uint64 = 100_000_000_000_000
	// TransferGas is 10 Tgas
	TransferGas uint64 = 10_000_000_000_000
)

var (
	// MintDeposit covers the minting contract's storage, 0.2 NEAR
	MintDeposit = decimal.New(2, 23)
	// BuyStorageSurcharge is attached on top of the price, 0.01 NEAR
	BuyStorageSurcharge = decimal.New(1, 22)
)

var (
	ErrCallNotFound         = errors.New("external call not found")
	ErrCallAlreadyCompleted = errors.New("external call already completed")
)

// Call is an outbound call along with the context needed to route its completion
type Call struct {
	ID         string          `json:"id"`
	Purpose    string          `json:"purpose"`
	Receiver   string          `json:"receiver"`
	Method     string          `json:"method"`
	Args       []byte          `json:"args"`
	Deposit    decimal.Decimal `json:"deposit"`
	Gas        uint64          `json:"gas"`
	ProposalID *uint64         `json:"proposal_id,omitempty"`
	DraftID    *uint64         `json:"draft_id,omitempty"`
	Handle     *uint64         `json:"handle,omitempty"`
	TransferID *uint64         `json:"transfer_id,omitempty"`
	Payer      string          `json:"payer,omitempty"`
	Owner      string          `json:"owner,omitempty"`
	// Amount is the value the call moves on our side: the price of a
	// purchase or the amount of a transfer
	Amount decimal.Decimal `json:"amount"`
}

// Result is the outcome of an external call as reported by the external system
type Result struct {
	Success bool            `json:"success"`
	Value   json.RawMessage `json:"value,omitempty"`
}
