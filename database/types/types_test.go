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

package types_test

import (
	"bytes"
	"testing"

	"github.com/blinklabs-io/fonodao/database/types"
)

func TestProposalBlobKey(t *testing.T) {
	testDefs := []uint64{0, 1, 255, 256, 1 << 40}
	var prevKey []byte
	for _, id := range testDefs {
		key := types.ProposalBlobKey(id)
		gotId, ok := types.ProposalIdFromBlobKey(key)
		if !ok {
			t.Fatalf("failed to parse key for id %d", id)
		}
		if gotId != id {
			t.Fatalf("did not get expected id: got %d, expected %d", gotId, id)
		}
		// Keys must sort in id order for iteration
		if prevKey != nil && bytes.Compare(prevKey, key) >= 0 {
			t.Fatalf("key for id %d does not sort after previous key", id)
		}
		prevKey = key
	}
}

func TestProposalIdFromBlobKeyRejectsOtherKeys(t *testing.T) {
	testDefs := [][]byte{
		[]byte(types.PolicyBlobKey),
		types.CounterBlobKey(types.LastProposalIdCounter),
		append([]byte("xx"), types.Uint64ToBytes(1)[1:]...),
	}
	for _, key := range testDefs {
		if _, ok := types.ProposalIdFromBlobKey(key); ok {
			t.Fatalf("unexpectedly parsed key %q", key)
		}
	}
}
