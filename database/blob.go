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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/fonodao/database/types"
	"github.com/shopspring/decimal"
)

// BlobGet returns the value stored under key
func (d *Database) BlobGet(txn *Txn, key []byte) ([]byte, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	return d.Blob().Get(txn.Blob(), key)
}

// BlobSet stores a value under key
func (d *Database) BlobSet(txn *Txn, key []byte, val []byte) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return d.Blob().Set(txn.Blob(), key, val)
}

// BlobDelete removes key
func (d *Database) BlobDelete(txn *Txn, key []byte) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return d.Blob().Delete(txn.Blob(), key)
}

// BlobIterator returns an iterator over the keys matching the given options
func (d *Database) BlobIterator(
	txn *Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	return d.Blob().NewIterator(txn.Blob(), opts)
}

// GetBlobCounter returns a named counter from the blob store. A missing
// counter reads as zero.
func (d *Database) GetBlobCounter(txn *Txn, name string) (uint64, error) {
	val, err := d.BlobGet(txn, types.CounterBlobKey(name))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return types.BytesToUint64(val), nil
}

// SetBlobCounter stores a named counter in the blob store
func (d *Database) SetBlobCounter(txn *Txn, name string, value uint64) error {
	return d.BlobSet(txn, types.CounterBlobKey(name), types.Uint64ToBytes(value))
}

// GetAmount returns an amount stored under key. A missing key reads as zero.
func (d *Database) GetAmount(txn *Txn, key string) (decimal.Decimal, error) {
	val, err := d.BlobGet(txn, []byte(key))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	var ret decimal.Decimal
	if err := ret.UnmarshalBinary(val); err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %q: %w", key, err)
	}
	return ret, nil
}

// SetAmount stores an amount under key
func (d *Database) SetAmount(txn *Txn, key string, amount decimal.Decimal) error {
	val, err := amount.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode amount %q: %w", key, err)
	}
	return d.BlobSet(txn, []byte(key), val)
}

// AddAmount adds delta to the amount stored under key and returns the new value
func (d *Database) AddAmount(
	txn *Txn,
	key string,
	delta decimal.Decimal,
) (decimal.Decimal, error) {
	current, err := d.GetAmount(txn, key)
	if err != nil {
		return decimal.Zero, err
	}
	current = current.Add(delta)
	if err := d.SetAmount(txn, key, current); err != nil {
		return decimal.Zero, err
	}
	return current, nil
}
