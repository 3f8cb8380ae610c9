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
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// transferTraceNamespace scopes the trace ids derived from transfer call ids
var transferTraceNamespace = uuid.MustParse("5c2d6f0e-3f7a-4b8e-9a51-6f0c1d2e7b94")

// Transfer is an outbound value transfer with its settlement state
type Transfer struct {
	ID          uint64          `json:"id"`
	TraceID     string          `json:"trace_id"`
	Kind        string          `json:"kind"`
	Beneficiary string          `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
	Handle      *uint64         `json:"handle,omitempty"`
	State       string          `json:"state"`
	CallID      string          `json:"call_id"`
}

// FailedTransaction is a failed transfer whose funds wait to be re-sent
type FailedTransaction struct {
	ID          uint64          `json:"id"`
	Beneficiary string          `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
	TransferID  uint64          `json:"transfer_id"`
}

func failedTransactionFromModel(tmpFailed models.FailedTransaction) FailedTransaction {
	return FailedTransaction{
		ID:          tmpFailed.ID,
		Beneficiary: tmpFailed.Beneficiary,
		Amount:      tmpFailed.Amount,
		TransferID:  tmpFailed.TransferID,
	}
}

// TransferRequest describes a transfer to send
type TransferRequest struct {
	Kind        string
	Beneficiary string
	Amount      decimal.Decimal
	// Handle is the asset the transfer pays out or refunds, if any
	Handle *uint64
	// ProposalID is set when the transfer executes a proposal
	ProposalID *uint64
}

// SendTransfer records a pending transfer and schedules the call that moves
// the funds
func (l *Ledger) SendTransfer(
	txn *database.Txn,
	req TransferRequest,
	now time.Time,
) (extcall.Call, error) {
	if !req.Amount.IsPositive() {
		return extcall.Call{}, ErrInvalidAmount
	}
	if !ValidAccountID(req.Beneficiary) {
		return extcall.Call{}, fmt.Errorf(
			"%w: %q",
			ErrInvalidAccountID,
			req.Beneficiary,
		)
	}
	callID := uuid.New()
	tmpTransfer := &models.Transfer{
		TraceId:     uuid.NewSHA1(transferTraceNamespace, callID[:]).String(),
		Kind:        req.Kind,
		Beneficiary: req.Beneficiary,
		Amount:      req.Amount,
		Handle:      req.Handle,
		State:       models.TransferStatePending,
		CallId:      callID.String(),
	}
	if err := l.store().AddTransfer(tmpTransfer, txn.Metadata()); err != nil {
		return extcall.Call{}, fmt.Errorf("record transfer: %w", err)
	}
	transferID := tmpTransfer.ID
	call, err := l.config.Orchestrator.Schedule(
		txn,
		extcall.Call{
			ID:         callID.String(),
			Purpose:    extcall.PurposeTransfer,
			Receiver:   req.Beneficiary,
			Method:     extcall.TransferMethod,
			Deposit:    req.Amount,
			Gas:        extcall.TransferGas,
			ProposalID: req.ProposalID,
			Handle:     req.Handle,
			TransferID: &transferID,
			Amount:     req.Amount,
		},
		now,
	)
	if err != nil {
		return extcall.Call{}, err
	}
	l.metrics.transfers.WithLabelValues(req.Kind).Inc()
	l.logger().Debug(
		"transfer scheduled",
		"component", "ledger",
		"transfer_id", transferID,
		"trace_id", tmpTransfer.TraceId,
		"kind", req.Kind,
		"beneficiary", req.Beneficiary,
		"amount", req.Amount.String(),
	)
	return call, nil
}

func (l *Ledger) pendingTransfer(
	txn *database.Txn,
	transferID uint64,
) (*models.Transfer, error) {
	tmpTransfer, err := l.store().GetTransfer(transferID, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if tmpTransfer.State != models.TransferStatePending {
		return nil, fmt.Errorf(
			"%w: transfer %d is %s",
			ErrTransferNotPending,
			transferID,
			tmpTransfer.State,
		)
	}
	return tmpTransfer, nil
}

// SettleTransfer marks a transfer as delivered
func (l *Ledger) SettleTransfer(txn *database.Txn, transferID uint64) error {
	tmpTransfer, err := l.pendingTransfer(txn, transferID)
	if err != nil {
		return err
	}
	tmpTransfer.State = models.TransferStateSettled
	return l.store().SetTransfer(tmpTransfer, txn.Metadata())
}

// FailTransfer marks a transfer as failed and records its funds as a failed
// transaction that can be re-sent
func (l *Ledger) FailTransfer(
	txn *database.Txn,
	transferID uint64,
) (FailedTransaction, error) {
	tmpTransfer, err := l.pendingTransfer(txn, transferID)
	if err != nil {
		return FailedTransaction{}, err
	}
	tmpTransfer.State = models.TransferStateFailed
	if err := l.store().SetTransfer(tmpTransfer, txn.Metadata()); err != nil {
		return FailedTransaction{}, err
	}
	failedID, err := l.store().NextCounter(
		failedTransactionCounter,
		txn.Metadata(),
	)
	if err != nil {
		return FailedTransaction{}, err
	}
	tmpFailed := &models.FailedTransaction{
		ID:          failedID,
		Beneficiary: tmpTransfer.Beneficiary,
		Amount:      tmpTransfer.Amount,
		TransferID:  tmpTransfer.ID,
	}
	if err := l.store().AddFailedTransaction(tmpFailed, txn.Metadata()); err != nil {
		return FailedTransaction{}, err
	}
	l.metrics.transfersFailed.Inc()
	l.logger().Warn(
		"transfer failed",
		"component", "ledger",
		"transfer_id", transferID,
		"failed_id", failedID,
		"beneficiary", tmpTransfer.Beneficiary,
		"amount", tmpTransfer.Amount.String(),
	)
	return failedTransactionFromModel(*tmpFailed), nil
}

// ResendFailedTransaction sends the funds of a failed transaction to
// newAddress and removes the failed record
func (l *Ledger) ResendFailedTransaction(
	txn *database.Txn,
	failedID uint64,
	newAddress string,
	now time.Time,
) (extcall.Call, error) {
	tmpFailed, err := l.store().GetFailedTransaction(failedID, txn.Metadata())
	if err != nil {
		if errors.Is(err, models.ErrFailedTransactionNotFound) {
			return extcall.Call{}, fmt.Errorf("%w: %d", ErrNoFailedTransaction, failedID)
		}
		return extcall.Call{}, err
	}
	if err := l.store().DeleteFailedTransaction(failedID, txn.Metadata()); err != nil {
		return extcall.Call{}, err
	}
	return l.SendTransfer(
		txn,
		TransferRequest{
			Kind:        models.TransferKindResend,
			Beneficiary: newAddress,
			Amount:      tmpFailed.Amount,
		},
		now,
	)
}
