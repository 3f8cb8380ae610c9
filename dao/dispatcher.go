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
	"encoding/json"
	"fmt"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/event"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/shopspring/decimal"
)

// Fungible token transfer calls
const (
	FtTransferMethod     = "ft_transfer"
	FtTransferCallMethod = "ft_transfer_call"
	// FtTransferGas is 10 Tgas
	FtTransferGas uint64 = 10_000_000_000_000
)

// OneYocto is the deposit required by fungible token transfers
var OneYocto = decimal.NewFromInt(1)

// dispatcher executes approved proposals for one entry point invocation
type dispatcher struct {
	dao *DAO
	fx  *effects
	now time.Time
}

func (d *DAO) dispatcher(fx *effects, now time.Time) *dispatcher {
	return &dispatcher{
		dao: d,
		fx:  fx,
		now: now,
	}
}

// ReturnBond sends a proposal's bond back to its proposer
func (x *dispatcher) ReturnBond(
	txn *database.Txn,
	id uint64,
	p *proposal.Proposal,
) error {
	call, err := x.dao.ledger.SendTransfer(
		txn,
		ledger.TransferRequest{
			Kind:        models.TransferKindBond,
			Beneficiary: p.Proposer,
			Amount:      p.Bond,
		},
		x.now,
	)
	if err != nil {
		return fmt.Errorf("return bond of proposal %d: %w", id, err)
	}
	x.fx.schedule(call)
	return nil
}

// Execute applies the effect of an approved proposal. Effects that go
// through an external call report pending and finish in the proposal's
// callback. Kinds acting on behalf of someone act for the proposer.
func (x *dispatcher) Execute(
	txn *database.Txn,
	pol *policy.Policy,
	id uint64,
	p *proposal.Proposal,
) (bool, error) {
	logger := x.dao.config.Logger
	logger.Info(
		"executing proposal",
		"component", "dao",
		"id", id,
		"label", p.Kind.Label(),
	)
	switch k := p.Kind.Kind.(type) {
	case proposal.ChangeConfig:
		return false, x.dao.saveConfig(txn, k.Config)
	case proposal.ChangePolicy:
		return false, x.dao.savePolicy(txn, k.Policy.Upgrade())
	case proposal.AddMemberToRole:
		return false, x.mutatePolicy(txn, pol, func(np *policy.Policy) error {
			return np.AddMemberToRole(k.Role, k.MemberID)
		})
	case proposal.RemoveMemberFromRole:
		if _, ok := pol.Role(k.Role); !ok {
			logger.Warn(
				"removing member from unknown role",
				"component", "dao",
				"id", id,
				"role", k.Role,
				"member", k.MemberID,
			)
			return false, nil
		}
		return false, x.mutatePolicy(txn, pol, func(np *policy.Policy) error {
			return np.RemoveMemberFromRole(k.Role, k.MemberID)
		})
	case proposal.ChangePolicyAddOrUpdateRole:
		return false, x.mutatePolicy(txn, pol, func(np *policy.Policy) error {
			np.AddOrUpdateRole(k.Role)
			return nil
		})
	case proposal.ChangePolicyRemoveRole:
		return false, x.mutatePolicy(txn, pol, func(np *policy.Policy) error {
			np.RemoveRole(k.Role)
			return nil
		})
	case proposal.ChangePolicyUpdateDefaultVotePolicy:
		return false, x.mutatePolicy(txn, pol, func(np *policy.Policy) error {
			np.UpdateDefaultVotePolicy(k.VotePolicy)
			return nil
		})
	case proposal.ChangePolicyUpdateParameters:
		return false, x.mutatePolicy(txn, pol, func(np *policy.Policy) error {
			np.UpdateParameters(k.Parameters)
			return nil
		})
	case proposal.SignalVote:
		return false, nil
	case proposal.FunctionCall:
		return x.functionCall(txn, id, k)
	case proposal.Transfer:
		return x.transfer(txn, id, p, k)
	case proposal.PrepairNft:
		draftID, err := x.dao.ledger.Prepare(txn, pol, p.Proposer, k.NftData, x.now)
		if err != nil {
			return false, err
		}
		logger.Debug(
			"draft prepared by proposal",
			"component", "dao",
			"id", id,
			"draft_id", draftID,
		)
		return false, nil
	case proposal.UpdatePrepairedNft:
		return false, x.dao.ledger.Update(txn, pol, p.Proposer, k.ID, k.NewNftData)
	case proposal.MintRoot:
		proposalID := id
		call, err := x.dao.ledger.BeginMint(txn, pol, p.Proposer, k.ID, &proposalID, x.now)
		if err != nil {
			return false, err
		}
		x.fx.schedule(call)
		return true, nil
	case proposal.CreateRevenueTable:
		_, err := x.dao.ledger.CreateRevenueTable(
			txn,
			p.Proposer,
			k.Contract,
			k.RootID,
			k.UnsafeTable,
			k.Price,
		)
		return false, err
	case proposal.AlterRevenueTable:
		return false, x.dao.ledger.AlterRevenueTable(
			txn,
			p.Proposer,
			k.TreeIndex,
			k.UnsafeTable,
			k.Price,
		)
	case proposal.PayoutRevenue:
		result, err := x.dao.ledger.Payout(txn, pol, p.Proposer, k.TreeIndexList, x.now)
		if err != nil {
			return false, err
		}
		x.fx.schedule(result.Calls...)
		x.fx.publish(
			event.PayoutCompletedEventType,
			event.PayoutCompletedEvent{
				Caller:    p.Proposer,
				Paid:      result.Paid,
				NotPaid:   result.NotPaid,
				Remainder: result.Remainder,
			},
		)
		return false, nil
	case proposal.ResendFailedTransaction:
		if _, member := pol.IsRoleMember(policy.CouncilRole, p.Proposer); !member {
			return false, fmt.Errorf(
				"%w: resending failed transactions is limited to the council",
				policy.ErrPermissionDenied,
			)
		}
		call, err := x.dao.ledger.ResendFailedTransaction(
			txn,
			k.FailedID,
			k.NewAddress,
			x.now,
		)
		if err != nil {
			return false, err
		}
		x.fx.schedule(call)
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", proposal.ErrUnknownKind, p.Kind.Kind)
	}
}

// mutatePolicy applies fn to a copy of the policy and stores the copy only
// if fn succeeds
func (x *dispatcher) mutatePolicy(
	txn *database.Txn,
	pol *policy.Policy,
	fn func(*policy.Policy) error,
) error {
	newPolicy := pol.Clone()
	if err := fn(newPolicy); err != nil {
		return err
	}
	return x.dao.savePolicy(txn, newPolicy)
}

// functionCall schedules one call per action. The proposal completes when
// the last of them succeeds or any of them fails.
func (x *dispatcher) functionCall(
	txn *database.Txn,
	id uint64,
	k proposal.FunctionCall,
) (bool, error) {
	if len(k.Actions) == 0 {
		return false, nil
	}
	for _, action := range k.Actions {
		proposalID := id
		call, err := x.dao.config.Orchestrator.Schedule(
			txn,
			extcall.Call{
				Purpose:    extcall.PurposeProposal,
				Receiver:   k.ReceiverID,
				Method:     action.MethodName,
				Args:       action.Args,
				Deposit:    action.Deposit,
				Gas:        action.Gas,
				ProposalID: &proposalID,
			},
			x.now,
		)
		if err != nil {
			return false, err
		}
		x.fx.schedule(call)
	}
	return true, nil
}

type ftTransferArgs struct {
	ReceiverID string          `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo,omitempty"`
	Msg        *string         `json:"msg,omitempty"`
}

// transfer sends the base token through the ledger's tracked transfers, or
// calls the token contract for a fungible token
func (x *dispatcher) transfer(
	txn *database.Txn,
	id uint64,
	p *proposal.Proposal,
	k proposal.Transfer,
) (bool, error) {
	proposalID := id
	if k.TokenID == "" {
		call, err := x.dao.ledger.SendTransfer(
			txn,
			ledger.TransferRequest{
				Kind:        models.TransferKindProposal,
				Beneficiary: k.ReceiverID,
				Amount:      k.Amount,
				ProposalID:  &proposalID,
			},
			x.now,
		)
		if err != nil {
			return false, err
		}
		x.fx.schedule(call)
		return true, nil
	}
	method := FtTransferMethod
	if k.Msg != nil {
		method = FtTransferCallMethod
	}
	args, err := json.Marshal(ftTransferArgs{
		ReceiverID: k.ReceiverID,
		Amount:     k.Amount,
		Memo:       p.Description,
		Msg:        k.Msg,
	})
	if err != nil {
		return false, err
	}
	call, err := x.dao.config.Orchestrator.Schedule(
		txn,
		extcall.Call{
			Purpose:    extcall.PurposeProposal,
			Receiver:   k.TokenID,
			Method:     method,
			Args:       args,
			Deposit:    OneYocto,
			Gas:        FtTransferGas,
			ProposalID: &proposalID,
			Amount:     k.Amount,
		},
		x.now,
	)
	if err != nil {
		return false, err
	}
	x.fx.schedule(call)
	return true, nil
}
