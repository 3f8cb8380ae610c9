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

package event

import (
	"github.com/shopspring/decimal"
)

const (
	ProposalSubmittedEventType = EventType("proposal.submitted")
	ProposalStatusEventType    = EventType("proposal.status")
	MintCommittedEventType     = EventType("mint.committed")
	MintFailedEventType        = EventType("mint.failed")
	BuyCommittedEventType      = EventType("buy.committed")
	BuyRefundedEventType       = EventType("buy.refunded")
	PayoutCompletedEventType   = EventType("payout.completed")
	TransferFailedEventType    = EventType("transfer.failed")
	CallScheduledEventType     = EventType("call.scheduled")
)

// ProposalSubmittedEvent is emitted when a proposal is stored
type ProposalSubmittedEvent struct {
	ProposalID uint64
	Proposer   string
	Label      string
}

// ProposalStatusEvent is emitted when an action changes a proposal's status
type ProposalStatusEvent struct {
	ProposalID uint64
	Status     string
	// Pending is set while the proposal's execution waits for an external result
	Pending bool
}

type MintCommittedEvent struct {
	Handle      uint64
	ExternalKey string
	Owner       string
	DraftID     uint64
}

type MintFailedEvent struct {
	DraftID uint64
	CallID  string
	Reason  string
}

type BuyCommittedEvent struct {
	Handle uint64
	Buyer  string
	Amount decimal.Decimal
}

type BuyRefundedEvent struct {
	Handle uint64
	Buyer  string
	Amount decimal.Decimal
}

// PayoutCompletedEvent is emitted once per payout batch
type PayoutCompletedEvent struct {
	Caller    string
	Paid      []uint64
	NotPaid   []uint64
	Remainder decimal.Decimal
}

type TransferFailedEvent struct {
	TransferID  uint64
	FailedID    uint64
	Beneficiary string
	Amount      decimal.Decimal
}

// CallScheduledEvent is emitted for each external call after the
// transaction recording it commits
type CallScheduledEvent struct {
	CallID   string
	Purpose  string
	Receiver string
	Method   string
}
