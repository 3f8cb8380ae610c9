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
	"fmt"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/event"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/shopspring/decimal"
)

func checkCaller(caller string) error {
	if !ledger.ValidAccountID(caller) {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidAccountID, caller)
	}
	return nil
}

// AddProposal submits a proposal on behalf of caller. The attached amount
// is held as the proposal's bond.
func (d *DAO) AddProposal(
	ctx context.Context,
	caller string,
	input proposal.Input,
	attached decimal.Decimal,
) (uint64, error) {
	if err := checkCaller(caller); err != nil {
		return 0, err
	}
	var id uint64
	err := d.update(
		ctx,
		"add_proposal",
		func(txn *database.Txn, pol *policy.Policy, fx *effects, now time.Time) error {
			var err error
			id, err = d.proposals.Submit(txn, pol, d.userInfo(caller), input, attached, now)
			if err != nil {
				return err
			}
			fx.publish(
				event.ProposalSubmittedEventType,
				event.ProposalSubmittedEvent{
					ProposalID: id,
					Proposer:   caller,
					Label:      input.Kind.Label(),
				},
			)
			return nil
		},
	)
	return id, err
}

// ActProposal applies a voting or lifecycle action by caller to a proposal.
// The memo is logged only.
func (d *DAO) ActProposal(
	ctx context.Context,
	caller string,
	id uint64,
	action policy.Action,
	memo string,
) (*proposal.Proposal, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	var ret *proposal.Proposal
	err := d.update(
		ctx,
		"act_proposal",
		func(txn *database.Txn, pol *policy.Policy, fx *effects, now time.Time) error {
			if memo != "" {
				d.config.Logger.Info(
					"proposal action memo",
					"component", "dao",
					"id", id,
					"action", action.String(),
					"caller", caller,
					"memo", memo,
				)
			}
			before, err := d.proposals.Get(txn, pol, id)
			if err != nil {
				return err
			}
			ret, err = d.proposals.Act(
				txn,
				pol,
				d.userInfo(caller),
				id,
				action,
				d.config.Weights.TotalSupply(),
				d.dispatcher(fx, now),
				now,
			)
			if err != nil {
				return err
			}
			if ret.Status != before.Status || ret.AwaitingCallback != before.AwaitingCallback {
				fx.publish(
					event.ProposalStatusEventType,
					event.ProposalStatusEvent{
						ProposalID: id,
						Status:     ret.Status.String(),
						Pending:    ret.AwaitingCallback,
					},
				)
			}
			return nil
		},
	)
	return ret, err
}

// BuyNFT starts a purchase of the asset identified by contract and root id.
// It returns the id of the purchase call.
func (d *DAO) BuyNFT(
	ctx context.Context,
	buyer string,
	contract string,
	rootID string,
	attached decimal.Decimal,
) (string, error) {
	if err := checkCaller(buyer); err != nil {
		return "", err
	}
	var callID string
	err := d.update(
		ctx,
		"buy_nft",
		func(txn *database.Txn, _ *policy.Policy, fx *effects, now time.Time) error {
			call, err := d.ledger.Buy(txn, buyer, contract, rootID, attached, now)
			if err != nil {
				return err
			}
			fx.schedule(call)
			callID = call.ID
			return nil
		},
	)
	return callID, err
}
