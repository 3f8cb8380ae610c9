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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/event"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
)

// CompleteCall applies the result of an external call. Each call completes
// exactly once; a repeated completion fails with
// extcall.ErrCallAlreadyCompleted and changes nothing.
func (d *DAO) CompleteCall(
	ctx context.Context,
	callID string,
	result extcall.Result,
) error {
	return d.update(
		ctx,
		"complete_call",
		func(txn *database.Txn, pol *policy.Policy, fx *effects, now time.Time) error {
			record, err := d.config.Orchestrator.Complete(txn, callID, result.Success, now)
			if err != nil {
				return err
			}
			d.metrics.callsCompleted.WithLabelValues(
				record.Purpose,
				strconv.FormatBool(result.Success),
			).Inc()
			exec := d.dispatcher(fx, now)
			switch record.Purpose {
			case extcall.PurposeMint:
				return d.completeMint(txn, pol, record, result, fx, exec)
			case extcall.PurposeBuy:
				return d.completeBuy(txn, record, result.Success, fx, now)
			case extcall.PurposeTransfer:
				return d.completeTransfer(txn, pol, record, result.Success, fx, exec)
			case extcall.PurposeProposal:
				return d.completeProposalCall(txn, pol, record, result.Success, fx, exec)
			default:
				return fmt.Errorf("call %s has unknown purpose %q", callID, record.Purpose)
			}
		},
	)
}

func isMintRejection(err error) bool {
	return errors.Is(err, ledger.ErrInvalidExternalKey) ||
		errors.Is(err, ledger.ErrDuplicateExternalKey) ||
		errors.Is(err, ledger.ErrDuplicateHandle) ||
		errors.Is(err, ledger.ErrInvalidMintResult)
}

func (d *DAO) completeMint(
	txn *database.Txn,
	pol *policy.Policy,
	record *models.PendingCall,
	result extcall.Result,
	fx *effects,
	exec *dispatcher,
) error {
	if record.DraftId == nil {
		return fmt.Errorf("%w: mint call %s", ledger.ErrMissingCallContext, record.ID)
	}
	var err error
	if result.Success {
		var mintResult ledger.MintResult
		if err = json.Unmarshal(result.Value, &mintResult); err != nil {
			err = fmt.Errorf("%w: %w", ledger.ErrInvalidMintResult, err)
		} else {
			var handle uint64
			handle, err = d.ledger.CommitMint(txn, record, mintResult)
			if err == nil {
				key, _ := ledger.ExternalKey(mintResult.Contract, mintResult.RootID)
				fx.publish(
					event.MintCommittedEventType,
					event.MintCommittedEvent{
						Handle:      handle,
						ExternalKey: key,
						Owner:       record.Owner,
						DraftID:     *record.DraftId,
					},
				)
				return d.proposalCallback(txn, pol, record, true, fx, exec)
			}
		}
		if !isMintRejection(err) {
			return err
		}
		// The external system reported a mint we can't record. The draft
		// goes back to editable and the call still counts as completed.
		d.config.Logger.Error(
			"rejected mint result",
			"component", "dao",
			"call_id", record.ID,
			"draft_id", *record.DraftId,
			"error", err,
		)
	}
	if err := d.ledger.FailMint(txn, *record.DraftId); err != nil {
		return err
	}
	reason := "external call failed"
	if err != nil {
		reason = err.Error()
	}
	fx.publish(
		event.MintFailedEventType,
		event.MintFailedEvent{
			DraftID: *record.DraftId,
			CallID:  record.ID,
			Reason:  reason,
		},
	)
	return d.proposalCallback(txn, pol, record, false, fx, exec)
}

func (d *DAO) completeBuy(
	txn *database.Txn,
	record *models.PendingCall,
	success bool,
	fx *effects,
	now time.Time,
) error {
	outcome, err := d.ledger.CompleteBuy(txn, record, success, now)
	if err != nil {
		return err
	}
	if outcome.Refunded {
		if outcome.Refund != nil {
			fx.schedule(*outcome.Refund)
		}
		fx.publish(
			event.BuyRefundedEventType,
			event.BuyRefundedEvent{
				Handle: outcome.Handle,
				Buyer:  outcome.Buyer,
				Amount: outcome.Amount,
			},
		)
		return nil
	}
	fx.publish(
		event.BuyCommittedEventType,
		event.BuyCommittedEvent{
			Handle: outcome.Handle,
			Buyer:  outcome.Buyer,
			Amount: outcome.Amount,
		},
	)
	return nil
}

func (d *DAO) completeTransfer(
	txn *database.Txn,
	pol *policy.Policy,
	record *models.PendingCall,
	success bool,
	fx *effects,
	exec *dispatcher,
) error {
	if record.TransferId == nil {
		return fmt.Errorf("%w: transfer call %s", ledger.ErrMissingCallContext, record.ID)
	}
	if success {
		if err := d.ledger.SettleTransfer(txn, *record.TransferId); err != nil {
			return err
		}
	} else {
		failed, err := d.ledger.FailTransfer(txn, *record.TransferId)
		if err != nil {
			return err
		}
		fx.publish(
			event.TransferFailedEventType,
			event.TransferFailedEvent{
				TransferID:  *record.TransferId,
				FailedID:    failed.ID,
				Beneficiary: failed.Beneficiary,
				Amount:      failed.Amount,
			},
		)
	}
	return d.proposalCallback(txn, pol, record, success, fx, exec)
}

// completeProposalCall handles one of the calls of a function call or token
// transfer proposal. The proposal succeeds once none of its calls are left
// pending and fails on the first failed call.
func (d *DAO) completeProposalCall(
	txn *database.Txn,
	pol *policy.Policy,
	record *models.PendingCall,
	success bool,
	fx *effects,
	exec *dispatcher,
) error {
	if record.ProposalId == nil {
		return fmt.Errorf("%w: proposal call %s", ledger.ErrMissingCallContext, record.ID)
	}
	if success {
		pending, err := d.config.Orchestrator.Pending(txn)
		if err != nil {
			return err
		}
		for _, tmpCall := range pending {
			if tmpCall.ProposalId != nil && *tmpCall.ProposalId == *record.ProposalId {
				d.config.Logger.Debug(
					"proposal call completed, waiting on remaining calls",
					"component", "dao",
					"id", *record.ProposalId,
					"call_id", record.ID,
				)
				return nil
			}
		}
	}
	return d.proposalCallback(txn, pol, record, success, fx, exec)
}

// proposalCallback reports the outcome of a proposal's external call to the
// proposal, if the call was raised by one. A proposal that no longer waits
// for a result is left alone.
func (d *DAO) proposalCallback(
	txn *database.Txn,
	pol *policy.Policy,
	record *models.PendingCall,
	success bool,
	fx *effects,
	exec *dispatcher,
) error {
	if record.ProposalId == nil {
		return nil
	}
	id := *record.ProposalId
	p, err := d.proposals.OnCallback(txn, pol, id, success, exec)
	if err != nil {
		if errors.Is(err, proposal.ErrCallbackNotExpected) ||
			errors.Is(err, proposal.ErrNoProposal) {
			d.metrics.ignoredCallbacks.Inc()
			d.config.Logger.Warn(
				"ignoring call result for proposal",
				"component", "dao",
				"id", id,
				"call_id", record.ID,
				"error", err,
			)
			return nil
		}
		return err
	}
	fx.publish(
		event.ProposalStatusEventType,
		event.ProposalStatusEvent{
			ProposalID: id,
			Status:     p.Status.String(),
		},
	)
	return nil
}
