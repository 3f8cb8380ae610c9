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
	"gorm.io/gorm/clause"
)

// GetDraft returns a draft by ID
func (d *MetadataStoreSqlite) GetDraft(
	id uint64,
	txn types.Txn,
) (*models.Draft, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Draft{}
	result := db.Where("id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrDraftNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetDrafts returns all drafts in ID order
func (d *MetadataStoreSqlite) GetDrafts(
	txn types.Txn,
) ([]models.Draft, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Draft
	result := db.Order("id ASC").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetDraft creates or replaces a draft
func (d *MetadataStoreSqlite) SetDraft(
	draft *models.Draft,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	// Draft IDs start at zero, which gorm's Save would treat as a new record
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(draft).Error
}

// DeleteDraft removes a draft
func (d *MetadataStoreSqlite) DeleteDraft(
	id uint64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&models.Draft{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDraftNotFound
	}
	return nil
}
