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

	"github.com/shopspring/decimal"
)

var (
	ErrIncomeRecordNotFound = errors.New("income record not found")
	ErrHandleNotFound       = errors.New("handle not found")
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")
)

// HandleIndex maps an external key ("<contract>-<root id>") to its handle
type HandleIndex struct {
	Handle uint64 `gorm:"primaryKey;autoIncrement:false"`
	UniqId string `gorm:"size:160;uniqueIndex;not null"`
}

func (HandleIndex) TableName() string {
	return "handle_index"
}

// IncomeRecord tracks lifetime income, unpaid balance, owner and price of a
// minted asset
type IncomeRecord struct {
	Handle         uint64              `gorm:"primaryKey;autoIncrement:false"`
	TotalIncome    decimal.Decimal     `gorm:"type:text;not null"`
	CurrentBalance decimal.Decimal     `gorm:"type:text;not null"`
	RootId         string              `gorm:"size:96;not null"`
	Contract       string              `gorm:"size:64;not null"`
	Owner          string              `gorm:"size:64;index;not null"`
	Price          decimal.NullDecimal `gorm:"type:text"`
}

func (IncomeRecord) TableName() string {
	return "income_record"
}

// CatalogEntry is an owner's slot for a handle. HasTable is false until a
// revenue table is attached.
type CatalogEntry struct {
	ID            uint           `gorm:"primarykey"`
	Owner         string         `gorm:"size:64;uniqueIndex:idx_catalog_owner_handle,priority:1;not null"`
	Handle        uint64         `gorm:"uniqueIndex:idx_catalog_owner_handle,priority:2;not null"`
	HasTable      bool           `gorm:"not null"`
	RevenueShares []RevenueShare `gorm:"foreignKey:CatalogEntryID"`
}

func (CatalogEntry) TableName() string {
	return "catalog_entry"
}

// RevenueShare is one payee line of a revenue table, in basis points
type RevenueShare struct {
	ID             uint   `gorm:"primarykey"`
	CatalogEntryID uint   `gorm:"index;not null"`
	Payee          string `gorm:"size:64;not null"`
	BasisPoints    uint64 `gorm:"not null"`
}

func (RevenueShare) TableName() string {
	return "revenue_share"
}
