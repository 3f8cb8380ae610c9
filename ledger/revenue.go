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
	"slices"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/database/types"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/shopspring/decimal"
)

const (
	// BasisPointsTotal is the sum every revenue table must reach
	BasisPointsTotal uint64 = 10000
	// MaxPayees limits the number of payees in a revenue table
	MaxPayees = 16
)

// RevenueTable maps each payee to its share of income in basis points
type RevenueTable map[string]uint64

// Validate checks that the shares sum to exactly 10000 basis points and that
// there are at most 16 payees
func (t RevenueTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: no payees", ErrInvalidRevenueTable)
	}
	if len(t) > MaxPayees {
		return fmt.Errorf(
			"%w: %d payees, at most %d allowed",
			ErrInvalidRevenueTable,
			len(t),
			MaxPayees,
		)
	}
	var total uint64
	for payee, bps := range t {
		if !ValidAccountID(payee) {
			return fmt.Errorf(
				"%w: payee %q is not a valid account id",
				ErrInvalidRevenueTable,
				payee,
			)
		}
		if bps > BasisPointsTotal {
			return fmt.Errorf(
				"%w: share of %s exceeds %d",
				ErrInvalidRevenueTable,
				payee,
				BasisPointsTotal,
			)
		}
		total += bps
	}
	if total != BasisPointsTotal {
		return fmt.Errorf(
			"%w: shares sum to %d, expected %d",
			ErrInvalidRevenueTable,
			total,
			BasisPointsTotal,
		)
	}
	return nil
}

// Payees returns the payees in a stable order
func (t RevenueTable) Payees() []string {
	ret := make([]string, 0, len(t))
	for payee := range t {
		ret = append(ret, payee)
	}
	slices.Sort(ret)
	return ret
}

// Split divides balance among the payees, rounding each share down. The
// second return value is the part of balance the rounding leaves behind.
func (t RevenueTable) Split(
	balance decimal.Decimal,
) (map[string]decimal.Decimal, decimal.Decimal) {
	ret := make(map[string]decimal.Decimal, len(t))
	divisor := decimal.NewFromUint64(BasisPointsTotal)
	remainder := balance
	for payee, bps := range t {
		amount, _ := balance.Mul(decimal.NewFromUint64(bps)).QuoRem(divisor, 0)
		ret[payee] = amount
		remainder = remainder.Sub(amount)
	}
	return ret, remainder
}

func (t RevenueTable) toModel() []models.RevenueShare {
	ret := make([]models.RevenueShare, 0, len(t))
	for _, payee := range t.Payees() {
		ret = append(
			ret,
			models.RevenueShare{
				Payee:       payee,
				BasisPoints: t[payee],
			},
		)
	}
	return ret
}

func revenueTableFromModel(tmpEntry *models.CatalogEntry) RevenueTable {
	if !tmpEntry.HasTable {
		return nil
	}
	ret := make(RevenueTable, len(tmpEntry.RevenueShares))
	for _, share := range tmpEntry.RevenueShares {
		ret[share.Payee] = share.BasisPoints
	}
	return ret
}

func (l *Ledger) ownedIncomeRecord(
	txn *database.Txn,
	caller string,
	handle uint64,
) (*models.IncomeRecord, error) {
	record, err := l.store().GetIncomeRecord(handle, txn.Metadata())
	if err != nil {
		if errors.Is(err, models.ErrIncomeRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrHandleNotFound, handle)
		}
		return nil, err
	}
	if record.Owner != caller {
		return nil, ErrNotOwner
	}
	return record, nil
}

func (l *Ledger) setRevenueTable(
	txn *database.Txn,
	record *models.IncomeRecord,
	table RevenueTable,
	price decimal.Decimal,
) error {
	record.Price = decimal.NewNullDecimal(price)
	if err := l.store().SetIncomeRecord(record, txn.Metadata()); err != nil {
		return err
	}
	if err := l.store().SetRevenueShares(
		record.Owner,
		record.Handle,
		table.toModel(),
		txn.Metadata(),
	); err != nil {
		return err
	}
	l.metrics.revenueTables.Inc()
	return nil
}

// CreateRevenueTable attaches the first revenue table and a price to a
// minted asset. Only the owner may do this, and only once.
func (l *Ledger) CreateRevenueTable(
	txn *database.Txn,
	caller string,
	contract string,
	rootID string,
	table RevenueTable,
	price decimal.Decimal,
) (uint64, error) {
	handle, err := l.Handle(txn, contract, rootID)
	if err != nil {
		return 0, err
	}
	record, err := l.ownedIncomeRecord(txn, caller, handle)
	if err != nil {
		return 0, err
	}
	if err := table.Validate(); err != nil {
		return 0, err
	}
	if price.IsNegative() {
		return 0, fmt.Errorf("%w: negative price", ErrInvalidRevenueTable)
	}
	entry, err := l.store().GetCatalogEntry(record.Owner, handle, txn.Metadata())
	if err != nil {
		return 0, err
	}
	if entry.HasTable {
		return 0, ErrRevenueTableExists
	}
	if err := l.setRevenueTable(txn, record, table, price); err != nil {
		return 0, err
	}
	l.logger().Info(
		"revenue table created",
		"component", "ledger",
		"handle", handle,
		"owner", record.Owner,
		"price", price.String(),
	)
	return handle, nil
}

// AlterRevenueTable replaces the revenue table and price of a minted asset
func (l *Ledger) AlterRevenueTable(
	txn *database.Txn,
	caller string,
	handle uint64,
	table RevenueTable,
	price decimal.Decimal,
) error {
	record, err := l.ownedIncomeRecord(txn, caller, handle)
	if err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return err
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrInvalidRevenueTable)
	}
	if _, err := l.store().GetCatalogEntry(record.Owner, handle, txn.Metadata()); err != nil {
		return err
	}
	if err := l.setRevenueTable(txn, record, table, price); err != nil {
		return err
	}
	l.logger().Info(
		"revenue table altered",
		"component", "ledger",
		"handle", handle,
		"owner", record.Owner,
		"price", price.String(),
	)
	return nil
}

// PayoutResult describes the outcome of a payout
type PayoutResult struct {
	Paid      []uint64                   `json:"paid"`
	NotPaid   []uint64                   `json:"not_paid"`
	Amounts   map[string]decimal.Decimal `json:"amounts"`
	Remainder decimal.Decimal            `json:"remainder"`
	Calls     []extcall.Call             `json:"-"`
}

// Payout distributes the current balance of each handle to its revenue
// table payees. The caller must own the handle or belong to the council.
// Handles the caller has no rights over are reported in NotPaid. Each
// payee's share is rounded down and the rounding remainder is kept in the
// DAO's payout remainder account.
func (l *Ledger) Payout(
	txn *database.Txn,
	pol *policy.Policy,
	caller string,
	handles []uint64,
	now time.Time,
) (*PayoutResult, error) {
	_, isAdmin := pol.IsRoleMember(policy.CouncilRole, caller)
	ret := &PayoutResult{
		Paid:      []uint64{},
		NotPaid:   []uint64{},
		Amounts:   map[string]decimal.Decimal{},
		Remainder: decimal.Zero,
	}
	for _, handle := range handles {
		record, err := l.store().GetIncomeRecord(handle, txn.Metadata())
		if err != nil {
			if errors.Is(err, models.ErrIncomeRecordNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrHandleNotFound, handle)
			}
			return nil, err
		}
		if record.Owner != caller && !isAdmin {
			ret.NotPaid = append(ret.NotPaid, handle)
			l.metrics.payoutsSkipped.Inc()
			l.logger().Info(
				"skipping payout, caller is neither owner nor council member",
				"component", "ledger",
				"handle", handle,
				"caller", caller,
			)
			continue
		}
		entry, err := l.store().GetCatalogEntry(record.Owner, handle, txn.Metadata())
		if err != nil {
			return nil, err
		}
		table := revenueTableFromModel(entry)
		if table == nil {
			return nil, fmt.Errorf("%w: handle %d", ErrNoRevenueTable, handle)
		}
		if err := table.Validate(); err != nil {
			return nil, fmt.Errorf("stored revenue table for handle %d: %w", handle, err)
		}
		amounts, remainder := table.Split(record.CurrentBalance)
		for _, payee := range table.Payees() {
			amount := amounts[payee]
			if amount.IsZero() {
				continue
			}
			handleRef := handle
			call, err := l.SendTransfer(
				txn,
				TransferRequest{
					Kind:        models.TransferKindPayout,
					Beneficiary: payee,
					Amount:      amount,
					Handle:      &handleRef,
				},
				now,
			)
			if err != nil {
				return nil, err
			}
			ret.Calls = append(ret.Calls, call)
			ret.Amounts[payee] = ret.Amounts[payee].Add(amount)
		}
		ret.Remainder = ret.Remainder.Add(remainder)
		record.CurrentBalance = decimal.Zero
		if err := l.store().SetIncomeRecord(record, txn.Metadata()); err != nil {
			return nil, err
		}
		ret.Paid = append(ret.Paid, handle)
		l.metrics.payouts.Inc()
		l.logger().Info(
			"paid out handle",
			"component", "ledger",
			"handle", handle,
			"payees", len(amounts),
			"remainder", remainder.String(),
		)
	}
	if ret.Remainder.IsPositive() {
		if _, err := l.config.DB.AddAmount(
			txn,
			types.PayoutRemainderBlobKey,
			ret.Remainder,
		); err != nil {
			return nil, fmt.Errorf("record payout remainder: %w", err)
		}
		l.metrics.payoutRemainder.Add(ret.Remainder.InexactFloat64())
	}
	return ret, nil
}
