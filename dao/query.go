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
	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/shopspring/decimal"
)

// Policy returns the current policy
func (d *DAO) Policy() (*policy.Policy, error) {
	var ret *policy.Policy
	err := d.view(func(_ *database.Txn, pol *policy.Policy) error {
		ret = pol
		return nil
	})
	return ret, err
}

// Config returns the DAO config
func (d *DAO) Config() (proposal.Config, error) {
	var ret proposal.Config
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.loadConfig(txn)
		return err
	})
	return ret, err
}

// LastProposalID returns the id the next proposal will get
func (d *DAO) LastProposalID() (uint64, error) {
	var ret uint64
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.proposals.LastID(txn)
		return err
	})
	return ret, err
}

func (d *DAO) Proposals(from uint64, limit uint64) ([]proposal.Output, error) {
	var ret []proposal.Output
	err := d.view(func(txn *database.Txn, pol *policy.Policy) error {
		var err error
		ret, err = d.proposals.List(txn, pol, from, limit)
		return err
	})
	return ret, err
}

func (d *DAO) Proposal(id uint64) (proposal.Output, error) {
	var ret proposal.Output
	err := d.view(func(txn *database.Txn, pol *policy.Policy) error {
		p, err := d.proposals.Get(txn, pol, id)
		if err != nil {
			return err
		}
		ret = proposal.Output{ID: id, Proposal: p}
		return nil
	})
	return ret, err
}

// LockedAmount returns the total of bonds held for open proposals
func (d *DAO) LockedAmount() (decimal.Decimal, error) {
	var ret decimal.Decimal
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.proposals.LockedAmount(txn)
		return err
	})
	return ret, err
}

// Drafts returns every draft not yet minted
func (d *DAO) Drafts() ([]ledger.Draft, error) {
	var ret []ledger.Draft
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.Drafts(txn)
		return err
	})
	return ret, err
}

// Catalogue returns a page of an artist's catalogue. A negative limit
// returns everything from from on.
func (d *DAO) Catalogue(artist string, from int, limit int) ([]ledger.CatalogEntry, error) {
	var ret []ledger.CatalogEntry
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.Catalogue(txn, artist, from, limit)
		return err
	})
	return ret, err
}

func (d *DAO) CatalogueEntries(artist string, handles []uint64) ([]ledger.CatalogEntry, error) {
	var ret []ledger.CatalogEntry
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.CatalogueEntries(txn, artist, handles)
		return err
	})
	return ret, err
}

func (d *DAO) IncomeRecord(handle uint64) (ledger.IncomeRecord, error) {
	var ret ledger.IncomeRecord
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.IncomeRecord(txn, handle)
		return err
	})
	return ret, err
}

func (d *DAO) IncomeRecords(from int, limit int) ([]ledger.IncomeRecord, error) {
	var ret []ledger.IncomeRecord
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.IncomeRecords(txn, from, limit)
		return err
	})
	return ret, err
}

// Price returns the price of an asset, nil if none is set
func (d *DAO) Price(contract string, rootID string) (*decimal.Decimal, error) {
	var ret *decimal.Decimal
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.Price(txn, contract, rootID)
		return err
	})
	return ret, err
}

func (d *DAO) Handle(contract string, rootID string) (uint64, error) {
	var ret uint64
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.Handle(txn, contract, rootID)
		return err
	})
	return ret, err
}

func (d *DAO) Handles(from int, limit int) ([]ledger.HandleEntry, error) {
	var ret []ledger.HandleEntry
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.Handles(txn, from, limit)
		return err
	})
	return ret, err
}

// HandleCount returns the number of minted assets
func (d *DAO) HandleCount() (uint64, error) {
	var ret uint64
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.HandleCount(txn)
		return err
	})
	return ret, err
}

func (d *DAO) FailedTransactions(from int, limit int) ([]ledger.FailedTransaction, error) {
	var ret []ledger.FailedTransaction
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.FailedTransactions(txn, from, limit)
		return err
	})
	return ret, err
}

// PendingCalls returns the external calls still awaiting completion
func (d *DAO) PendingCalls() ([]extcall.Call, error) {
	var ret []extcall.Call
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		tmpCalls, err := d.config.Orchestrator.Pending(txn)
		if err != nil {
			return err
		}
		ret = make([]extcall.Call, 0, len(tmpCalls))
		for _, tmpCall := range tmpCalls {
			ret = append(ret, extcall.CallFromRecord(tmpCall))
		}
		return nil
	})
	return ret, err
}

// PendingCall returns a single external call record
func (d *DAO) PendingCall(id string) (*models.PendingCall, error) {
	var ret *models.PendingCall
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.config.DB.Metadata().GetPendingCall(id, txn.Metadata())
		return err
	})
	return ret, err
}

// PayoutRemainder returns the rounding remainder kept from payouts
func (d *DAO) PayoutRemainder() (decimal.Decimal, error) {
	var ret decimal.Decimal
	err := d.view(func(txn *database.Txn, _ *policy.Policy) error {
		var err error
		ret, err = d.ledger.PayoutRemainder(txn)
		return err
	})
	return ret, err
}
