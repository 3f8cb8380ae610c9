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

import "errors"

var ErrDraftNotFound = errors.New("draft not found")

// Draft states
const (
	DraftStateDraft                  uint8 = 0
	DraftStatePendingExternalConfirm uint8 = 1
)

// Draft is an in-progress asset description. It is keyed by a nonce that is
// never reused. A draft row is deleted when its mint is committed.
type Draft struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement:false"`
	Initiated        int64  `gorm:"not null"`
	Artist           string `gorm:"size:64;index;not null"`
	Contract         string `gorm:"size:64;not null"`
	Scheduled        *uint64
	Title            *string
	Desc             *string
	Image            *string
	ImageHash        *string
	Music            *string
	MusicHash        *string
	AnimationUrl     *string
	AnimationUrlHash *string
	Meta             *string
	MetaHash         *string
	State            uint8  `gorm:"index;not null"`
	MintCallId       string `gorm:"size:36"`
}

func (Draft) TableName() string {
	return "draft"
}
