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

package metadata

import (
	"time"

	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/fonodao/database/types"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Counters
	GetCounter(string, types.Txn) (uint64, error)
	NextCounter(string, types.Txn) (uint64, error)

	// Drafts
	GetDraft(uint64, types.Txn) (*models.Draft, error)
	GetDrafts(types.Txn) ([]models.Draft, error)
	SetDraft(*models.Draft, types.Txn) error
	DeleteDraft(uint64, types.Txn) error

	// Handle index and income
	GetHandleByUniqId(string, types.Txn) (uint64, error)
	GetHandleIndex(uint64, types.Txn) (*models.HandleIndex, error)
	AddHandleIndex(
		uint64, // handle
		string, // uniqId
		types.Txn,
	) error
	GetHandleIndexSlice(
		int, // from
		int, // limit
		types.Txn,
	) ([]models.HandleIndex, error)
	CountHandles(types.Txn) (uint64, error)
	AddIncomeRecord(*models.IncomeRecord, types.Txn) error
	GetIncomeRecord(uint64, types.Txn) (*models.IncomeRecord, error)
	SetIncomeRecord(*models.IncomeRecord, types.Txn) error
	GetIncomeRecords(
		int, // from
		int, // limit
		types.Txn,
	) ([]models.IncomeRecord, error)

	// Catalogs
	AddCatalogEntry(
		string, // owner
		uint64, // handle
		types.Txn,
	) error
	GetCatalogEntry(
		string, // owner
		uint64, // handle
		types.Txn,
	) (*models.CatalogEntry, error)
	SetRevenueShares(
		string, // owner
		uint64, // handle
		[]models.RevenueShare,
		types.Txn,
	) error
	GetCatalog(
		string, // owner
		int, // from
		int, // limit
		types.Txn,
	) ([]models.CatalogEntry, error)
	GetCatalogEntries(
		string, // owner
		[]uint64, // handles
		types.Txn,
	) ([]models.CatalogEntry, error)

	// Transfers
	AddTransfer(*models.Transfer, types.Txn) error
	GetTransfer(uint64, types.Txn) (*models.Transfer, error)
	SetTransfer(*models.Transfer, types.Txn) error
	GetTransfersByState(string, types.Txn) ([]models.Transfer, error)
	AddFailedTransaction(*models.FailedTransaction, types.Txn) error
	GetFailedTransaction(uint64, types.Txn) (*models.FailedTransaction, error)
	DeleteFailedTransaction(uint64, types.Txn) error
	GetFailedTransactions(
		int, // from
		int, // limit
		types.Txn,
	) ([]models.FailedTransaction, error)

	// External calls
	AddPendingCall(*models.PendingCall, types.Txn) error
	GetPendingCall(string, types.Txn) (*models.PendingCall, error)
	GetPendingCalls(types.Txn) ([]models.PendingCall, error)
	CompletePendingCall(
		string, // id
		bool, // success
		time.Time, // completedAt
		types.Txn,
	) (bool, error)
}

// Compile-time check
var _ MetadataStore = (*sqlite.MetadataStoreSqlite)(nil)
