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

package sqlite

import (
	"errors"

	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/database/types"
	"gorm.io/gorm"
)

// AddCatalogEntry inserts an empty catalog entry for a handle under its owner
func (d *MetadataStoreSqlite) AddCatalogEntry(
	owner string,
	handle uint64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	tmpEntry := models.CatalogEntry{
		Owner:  owner,
		Handle: handle,
	}
	return db.Create(&tmpEntry).Error
}

// GetCatalogEntry returns an owner's catalog entry for a handle, including its revenue shares
func (d *MetadataStoreSqlite) GetCatalogEntry(
	owner string,
	handle uint64,
	txn types.Txn,
) (*models.CatalogEntry, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.CatalogEntry{}
	result := db.Preload("RevenueShares", func(db *gorm.DB) *gorm.DB {
		return db.Order("payee ASC")
	}).
		Where("owner = ? AND handle = ?", owner, handle).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrCatalogEntryNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// SetRevenueShares replaces the revenue table attached to a catalog entry
func (d *MetadataStoreSqlite) SetRevenueShares(
	owner string,
	handle uint64,
	shares []models.RevenueShare,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	var tmpEntry models.CatalogEntry
	result := db.Where("owner = ? AND handle = ?", owner, handle).First(&tmpEntry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.ErrCatalogEntryNotFound
		}
		return result.Error
	}
	if result := db.Where("catalog_entry_id = ?", tmpEntry.ID).Delete(&models.RevenueShare{}); result.Error != nil {
		return result.Error
	}
	if len(shares) > 0 {
		tmpShares := make([]models.RevenueShare, 0, len(shares))
		for _, share := range shares {
			tmpShares = append(
				tmpShares,
				models.RevenueShare{
					CatalogEntryID: tmpEntry.ID,
					Payee:          share.Payee,
					BasisPoints:    share.BasisPoints,
				},
			)
		}
		if result := db.Create(&tmpShares); result.Error != nil {
			return result.Error
		}
	}
	result = db.Model(&models.CatalogEntry{}).
		Where("id = ?", tmpEntry.ID).
		Update("has_table", len(shares) > 0)
	return result.Error
}

// GetCatalog returns a page of an owner's catalog in handle order. A negative
// limit returns the whole catalog.
func (d *MetadataStoreSqlite) GetCatalog(
	owner string,
	from int,
	limit int,
	txn types.Txn,
) ([]models.CatalogEntry, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.CatalogEntry
	result := db.Preload("RevenueShares", func(db *gorm.DB) *gorm.DB {
		return db.Order("payee ASC")
	}).
		Where("owner = ?", owner).
		Order("handle ASC").
		Offset(from).
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetCatalogEntries returns the owner's catalog entries for the given handles.
// Handles the owner does not hold are omitted.
func (d *MetadataStoreSqlite) GetCatalogEntries(
	owner string,
	handles []uint64,
	txn types.Txn,
) ([]models.CatalogEntry, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.CatalogEntry
	if len(handles) == 0 {
		return ret, nil
	}
	result := db.Preload("RevenueShares", func(db *gorm.DB) *gorm.DB {
		return db.Order("payee ASC")
	}).
		Where("owner = ? AND handle IN ?", owner, handles).
		Order("handle ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
