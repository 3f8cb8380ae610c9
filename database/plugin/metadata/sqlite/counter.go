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

// GetCounter returns the current value of a named counter
func (d *MetadataStoreSqlite) GetCounter(
	name string,
	txn types.Txn,
) (uint64, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var tmpCounter models.Counter
	result := db.Where("counter_name = ?", name).First(&tmpCounter)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return tmpCounter.Value, nil
}

// NextCounter returns the current value of a named counter and advances it by one
func (d *MetadataStoreSqlite) NextCounter(
	name string,
	txn types.Txn,
) (uint64, error) {
	ret, err := d.GetCounter(name, txn)
	if err != nil {
		return 0, err
	}
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	tmpCounter := models.Counter{
		Name:  name,
		Value: ret + 1,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "counter_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&tmpCounter)
	if result.Error != nil {
		return 0, result.Error
	}
	return ret, nil
}
