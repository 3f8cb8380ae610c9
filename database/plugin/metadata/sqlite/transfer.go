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

// AddTransfer records a new outbound transfer. The ID is assigned by the database.
func (d *MetadataStoreSqlite) AddTransfer(
	transfer *models.Transfer,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(transfer).Error
}

// GetTransfer returns a transfer by ID
func (d *MetadataStoreSqlite) GetTransfer(
	id uint64,
	txn types.Txn,
) (*models.Transfer, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Transfer{}
	result := db.Where("id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrTransferNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// SetTransfer replaces an existing transfer
func (d *MetadataStoreSqlite) SetTransfer(
	transfer *models.Transfer,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Save(transfer).Error
}

// GetTransfersByState returns all transfers in the given state in ID order
func (d *MetadataStoreSqlite) GetTransfersByState(
	state string,
	txn types.Txn,
) ([]models.Transfer, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Transfer
	result := db.Where("state = ?", state).Order("id ASC").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddFailedTransaction records a failed transfer for a later resend
func (d *MetadataStoreSqlite) AddFailedTransaction(
	failedTxn *models.FailedTransaction,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(failedTxn).Error
}

// GetFailedTransaction returns a failed transaction by ID
func (d *MetadataStoreSqlite) GetFailedTransaction(
	id uint64,
	txn types.Txn,
) (*models.FailedTransaction, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.FailedTransaction{}
	result := db.Where("id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrFailedTransactionNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// DeleteFailedTransaction removes a failed transaction
func (d *MetadataStoreSqlite) DeleteFailedTransaction(
	id uint64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&models.FailedTransaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFailedTransactionNotFound
	}
	return nil
}

// GetFailedTransactions returns a page of failed transactions in ID order
func (d *MetadataStoreSqlite) GetFailedTransactions(
	from int,
	limit int,
	txn types.Txn,
) ([]models.FailedTransaction, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.FailedTransaction
	result := db.Order("id ASC").Offset(from).Limit(limit).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
