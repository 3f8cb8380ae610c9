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

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/database/types"
	"github.com/shopspring/decimal"
)

// IncomeRecord is the income ledger of a minted asset
type IncomeRecord struct {
	Handle         uint64           `json:"handle"`
	TotalIncome    decimal.Decimal  `json:"total_income"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	RootID         string           `json:"root_id"`
	Contract       string           `json:"contract"`
	Owner          string           `json:"owner"`
	Price          *decimal.Decimal `json:"price"`
}

func incomeRecordFromModel(record *models.IncomeRecord) IncomeRecord {
	ret := IncomeRecord{
		Handle:         record.Handle,
		TotalIncome:    record.TotalIncome,
		CurrentBalance: record.CurrentBalance,
		RootID:         record.RootId,
		Contract:       record.Contract,
		Owner:          record.Owner,
	}
	if record.Price.Valid {
		price := record.Price.Decimal
		ret.Price = &price
	}
	return ret
}

// CatalogEntry is an owner's slot for an asset. RevenueTable is nil until a
// revenue table has been created.
type CatalogEntry struct {
	Handle       uint64       `json:"handle"`
	RevenueTable RevenueTable `json:"revenue_table"`
}

func catalogEntriesFromModel(entries []models.CatalogEntry) []CatalogEntry {
	ret := make([]CatalogEntry, 0, len(entries))
	for idx := range entries {
		ret = append(
			ret,
			CatalogEntry{
				Handle:       entries[idx].Handle,
				RevenueTable: revenueTableFromModel(&entries[idx]),
			},
		)
	}
	return ret
}

// HandleEntry maps an external key to its handle
type HandleEntry struct {
	Handle      uint64 `json:"handle"`
	ExternalKey string `json:"uniq_id"`
}

// Handle resolves the handle of a minted asset
func (l *Ledger) Handle(
	txn *database.Txn,
	contract string,
	rootID string,
) (uint64, error) {
	// Lookups do not validate the key syntax, an unknown key just misses
	key := contract + "-" + rootID
	handle, err := l.store().GetHandleByUniqId(key, txn.Metadata())
	if err != nil {
		if errors.Is(err, models.ErrHandleNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrHandleNotFound, key)
		}
		return 0, err
	}
	return handle, nil
}

// Drafts returns all drafts in id order
func (l *Ledger) Drafts(txn *database.Txn) ([]Draft, error) {
	tmpDrafts, err := l.store().GetDrafts(txn.Metadata())
	if err != nil {
		return nil, err
	}
	ret := make([]Draft, 0, len(tmpDrafts))
	for idx := range tmpDrafts {
		ret = append(ret, draftFromModel(&tmpDrafts[idx]))
	}
	return ret, nil
}

func (l *Ledger) Draft(txn *database.Txn, id uint64) (Draft, error) {
	tmpDraft, err := l.store().GetDraft(id, txn.Metadata())
	if err != nil {
		return Draft{}, err
	}
	return draftFromModel(tmpDraft), nil
}

// Catalogue returns a page of an owner's catalog. A negative limit returns
// everything from the offset on.
func (l *Ledger) Catalogue(
	txn *database.Txn,
	owner string,
	from int,
	limit int,
) ([]CatalogEntry, error) {
	entries, err := l.store().GetCatalog(owner, from, limit, txn.Metadata())
	if err != nil {
		return nil, err
	}
	return catalogEntriesFromModel(entries), nil
}

// CatalogueEntries returns the owner's entries for the given handles. Handles
// the owner does not hold are left out.
func (l *Ledger) CatalogueEntries(
	txn *database.Txn,
	owner string,
	handles []uint64,
) ([]CatalogEntry, error) {
	if len(handles) == 0 {
		return []CatalogEntry{}, nil
	}
	entries, err := l.store().GetCatalogEntries(owner, handles, txn.Metadata())
	if err != nil {
		return nil, err
	}
	return catalogEntriesFromModel(entries), nil
}

func (l *Ledger) IncomeRecord(
	txn *database.Txn,
	handle uint64,
) (IncomeRecord, error) {
	record, err := l.store().GetIncomeRecord(handle, txn.Metadata())
	if err != nil {
		if errors.Is(err, models.ErrIncomeRecordNotFound) {
			return IncomeRecord{}, fmt.Errorf("%w: %d", ErrHandleNotFound, handle)
		}
		return IncomeRecord{}, err
	}
	return incomeRecordFromModel(record), nil
}

func (l *Ledger) IncomeRecords(
	txn *database.Txn,
	from int,
	limit int,
) ([]IncomeRecord, error) {
	records, err := l.store().GetIncomeRecords(from, limit, txn.Metadata())
	if err != nil {
		return nil, err
	}
	ret := make([]IncomeRecord, 0, len(records))
	for idx := range records {
		ret = append(ret, incomeRecordFromModel(&records[idx]))
	}
	return ret, nil
}

// Price returns the sale price of an asset, or nil when none is set
func (l *Ledger) Price(
	txn *database.Txn,
	contract string,
	rootID string,
) (*decimal.Decimal, error) {
	handle, err := l.Handle(txn, contract, rootID)
	if err != nil {
		return nil, err
	}
	record, err := l.IncomeRecord(txn, handle)
	if err != nil {
		return nil, err
	}
	return record.Price, nil
}

func (l *Ledger) Handles(
	txn *database.Txn,
	from int,
	limit int,
) ([]HandleEntry, error) {
	indexes, err := l.store().GetHandleIndexSlice(from, limit, txn.Metadata())
	if err != nil {
		return nil, err
	}
	ret := make([]HandleEntry, 0, len(indexes))
	for _, index := range indexes {
		ret = append(
			ret,
			HandleEntry{
				Handle:      index.Handle,
				ExternalKey: index.UniqId,
			},
		)
	}
	return ret, nil
}

// HandleCount returns the number of minted assets
func (l *Ledger) HandleCount(txn *database.Txn) (uint64, error) {
	return l.store().CountHandles(txn.Metadata())
}

func (l *Ledger) FailedTransactions(
	txn *database.Txn,
	from int,
	limit int,
) ([]FailedTransaction, error) {
	tmpFailed, err := l.store().GetFailedTransactions(from, limit, txn.Metadata())
	if err != nil {
		return nil, err
	}
	ret := make([]FailedTransaction, 0, len(tmpFailed))
	for _, item := range tmpFailed {
		ret = append(ret, failedTransactionFromModel(item))
	}
	return ret, nil
}

// Transfer returns a transfer by id
func (l *Ledger) Transfer(txn *database.Txn, id uint64) (Transfer, error) {
	tmpTransfer, err := l.store().GetTransfer(id, txn.Metadata())
	if err != nil {
		return Transfer{}, err
	}
	return Transfer{
		ID:          tmpTransfer.ID,
		TraceID:     tmpTransfer.TraceId,
		Kind:        tmpTransfer.Kind,
		Beneficiary: tmpTransfer.Beneficiary,
		Amount:      tmpTransfer.Amount,
		Handle:      tmpTransfer.Handle,
		State:       tmpTransfer.State,
		CallID:      tmpTransfer.CallId,
	}, nil
}

// PayoutRemainder returns the total of rounding remainders kept by payouts
func (l *Ledger) PayoutRemainder(txn *database.Txn) (decimal.Decimal, error) {
	return l.config.DB.GetAmount(txn, types.PayoutRemainderBlobKey)
}
