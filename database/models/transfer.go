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

package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTransferNotFound          = errors.New("transfer not found")
	ErrFailedTransactionNotFound = errors.New("failed transaction not found")
)

// Transfer kinds
const (
	TransferKindPayout   = "payout"
	TransferKindRefund   = "refund"
	TransferKindBond     = "bond"
	TransferKindResend   = "resend"
	TransferKindProposal = "proposal"
)

// Transfer states
const (
	TransferStatePending = "pending"
	TransferStateSettled = "settled"
	TransferStateFailed  = "failed"
)

// Transfer is a single outbound value transfer with its own settlement state
type Transfer struct {
	ID          uint64          `gorm:"primarykey"`
	TraceId     string          `gorm:"size:36;uniqueIndex;not null"`
	Kind        string          `gorm:"size:16;index;not null"`
	Beneficiary string          `gorm:"size:64;not null"`
	Amount      decimal.Decimal `gorm:"type:text;not null"`
	Handle      *uint64         `gorm:"index"`
	State       string          `gorm:"size:16;index;not null"`
	CallId      string          `gorm:"size:36;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Transfer) TableName() string {
	return "transfer"
}

// FailedTransaction records a transfer whose completion reported failure.
// The funds stay escrowed until a resend proposal is executed.
type FailedTransaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement:false"`
	Beneficiary string          `gorm:"size:64;not null"`
	Amount      decimal.Decimal `gorm:"type:text;not null"`
	TransferID  uint64          `gorm:"uniqueIndex;not null"`
}

func (FailedTransaction) TableName() string {
	return "failed_transaction"
}
