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

package types

import (
	"encoding/binary"
)

const (
	PolicyBlobKey           = "policy"
	ConfigBlobKey           = "config"
	ProposalBlobKeyPrefix   = "p"
	CounterBlobKeyPrefix    = "c_"
	CommitTimestampBlobKey  = "commit_timestamp"
	LastProposalIdCounter   = "last_proposal_id"
	LockedAmountBlobKey     = "locked_amount"
	PayoutRemainderBlobKey  = "payout_remainder"
	ProposalBlobKeyIdLength = 8
)

func Uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

func BytesToUint64(input []byte) uint64 {
	if len(input) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(input)
}

// ProposalBlobKey returns the key for a proposal. Big-endian ids keep
// iteration in submission order.
func ProposalBlobKey(id uint64) []byte {
	key := []byte(ProposalBlobKeyPrefix)
	key = append(key, Uint64ToBytes(id)...)
	return key
}

// ProposalIdFromBlobKey extracts the proposal id from a proposal key
func ProposalIdFromBlobKey(key []byte) (uint64, bool) {
	if len(key) != len(ProposalBlobKeyPrefix)+ProposalBlobKeyIdLength {
		return 0, false
	}
	if string(key[:len(ProposalBlobKeyPrefix)]) != ProposalBlobKeyPrefix {
		return 0, false
	}
	return BytesToUint64(key[len(ProposalBlobKeyPrefix):]), true
}

func CounterBlobKey(name string) []byte {
	return []byte(CounterBlobKeyPrefix + name)
}
