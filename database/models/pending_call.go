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

var ErrPendingCallNotFound = errors.New("pending call not found")

// Pending call states
const (
	CallStatePending   = "pending"
	CallStateCompleted = "completed"
)

// PendingCall is an outbound external call awaiting its single completion
type PendingCall struct {
	ID          string          `gorm:"size:36;primaryKey"`
	Purpose     string          `gorm:"size:16;index;not null"`
	Receiver    string          `gorm:"size:64;not null"`
	Method      string          `gorm:"size:64;not null"`
	Args        []byte          `gorm:"type:blob"`
	Deposit     decimal.Decimal `gorm:"type:text;not null"`
	Gas         uint64          `gorm:"not null"`
	ProposalId  *uint64         `gorm:"index"`
	DraftId     *uint64
	Handle      *uint64
	TransferId  *uint64
	Payer       string          `gorm:"size:64"`
	Owner       string          `gorm:"size:64"`
	Amount      decimal.Decimal `gorm:"type:text;not null"`
	State       string          `gorm:"size:16;index;not null"`
	Success     *bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (PendingCall) TableName() string {
	return "pending_call"
}
