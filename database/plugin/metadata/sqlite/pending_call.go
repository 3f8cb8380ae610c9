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
	"time"

	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/database/types"
	"gorm.io/gorm"
)

// AddPendingCall records an outbound external call
func (d *MetadataStoreSqlite) AddPendingCall(
	call *models.PendingCall,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(call).Error
}

// GetPendingCall returns an external call record by ID, in any state
func (d *MetadataStoreSqlite) GetPendingCall(
	id string,
	txn types.Txn,
) (*models.PendingCall, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.PendingCall{}
	result := db.Where("id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrPendingCallNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetPendingCalls returns all calls still awaiting completion, oldest first
func (d *MetadataStoreSqlite) GetPendingCalls(
	txn types.Txn,
) ([]models.PendingCall, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.PendingCall
	result := db.Where("state = ?", models.CallStatePending).
		Order("created_at ASC").
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CompletePendingCall moves a call from pending to completed. It reports false
// when the call was not pending, so each call completes at most once.
func (d *MetadataStoreSqlite) CompletePendingCall(
	id string,
	success bool,
	completedAt time.Time,
	txn types.Txn,
) (bool, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return false, err
	}
	result := db.Model(&models.PendingCall{}).
		Where("id = ? AND state = ?", id, models.CallStatePending).
		Updates(map[string]any{
			"state":        models.CallStateCompleted,
			"success":      success,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
