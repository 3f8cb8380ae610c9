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

// GetHandleByUniqId returns the handle assigned to an external key
func (d *MetadataStoreSqlite) GetHandleByUniqId(
	uniqId string,
	txn types.Txn,
) (uint64, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var tmpIndex models.HandleIndex
	result := db.Where("uniq_id = ?", uniqId).First(&tmpIndex)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, models.ErrHandleNotFound
		}
		return 0, result.Error
	}
	return tmpIndex.Handle, nil
}

// GetHandleIndex returns the index entry for a handle
func (d *MetadataStoreSqlite) GetHandleIndex(
	handle uint64,
	txn types.Txn,
) (*models.HandleIndex, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.HandleIndex{}
	result := db.Where("handle = ?", handle).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrHandleNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// AddHandleIndex inserts a new handle index entry. Existing entries are never
// overwritten.
func (d *MetadataStoreSqlite) AddHandleIndex(
	handle uint64,
	uniqId string,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	tmpIndex := models.HandleIndex{
		Handle: handle,
		UniqId: uniqId,
	}
	return db.Create(&tmpIndex).Error
}

// GetHandleIndexSlice returns a page of handle index entries in handle order
func (d *MetadataStoreSqlite) GetHandleIndexSlice(
	from int,
	limit int,
	txn types.Txn,
) ([]models.HandleIndex, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.HandleIndex
	result := db.Order("handle ASC").Offset(from).Limit(limit).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountHandles returns the number of assigned handles
func (d *MetadataStoreSqlite) CountHandles(txn types.Txn) (uint64, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var count int64
	if result := db.Model(&models.HandleIndex{}).Count(&count); result.Error != nil {
		return 0, result.Error
	}
	// #nosec G115
	return uint64(count), nil
}

// AddIncomeRecord inserts the income record for a newly minted handle
func (d *MetadataStoreSqlite) AddIncomeRecord(
	record *models.IncomeRecord,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(record).Error
}

// GetIncomeRecord returns the income record for a handle
func (d *MetadataStoreSqlite) GetIncomeRecord(
	handle uint64,
	txn types.Txn,
) (*models.IncomeRecord, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.IncomeRecord{}
	result := db.Where("handle = ?", handle).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrIncomeRecordNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// SetIncomeRecord replaces an existing income record
func (d *MetadataStoreSqlite) SetIncomeRecord(
	record *models.IncomeRecord,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.IncomeRecord{}).
		Where("handle = ?", record.Handle).
		Select("*").
		Updates(record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrIncomeRecordNotFound
	}
	return nil
}

// GetIncomeRecords returns a page of income records in handle order
func (d *MetadataStoreSqlite) GetIncomeRecords(
	from int,
	limit int,
	txn types.Txn,
) ([]models.IncomeRecord, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.IncomeRecord
	result := db.Order("handle ASC").Offset(from).Limit(limit).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
