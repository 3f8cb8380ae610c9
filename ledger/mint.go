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

package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/shopspring/decimal"
)

const (
	minAccountIDLength = 2
	maxAccountIDLength = 64
	rootIDPrefix       = "fono-root-"
)

var (
	accountIDRegexp = regexp.MustCompile(
		`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`,
	)
	rootIDRegexp = regexp.MustCompile(`^fono-root-[0-9]+$`)
)

// ValidAccountID reports whether id is a well-formed account id
func ValidAccountID(id string) bool {
	if len(id) < minAccountIDLength || len(id) > maxAccountIDLength {
		return false
	}
	return accountIDRegexp.MatchString(id)
}

// ExternalKey builds the key identifying a minted asset in the external
// system: "<contract>-<root id>"
func ExternalKey(contract string, rootID string) (string, error) {
	if !ValidAccountID(contract) {
		return "", fmt.Errorf(
			"%w: contract %q is not a valid account id",
			ErrInvalidExternalKey,
			contract,
		)
	}
	if !rootIDRegexp.MatchString(rootID) {
		return "", fmt.Errorf(
			"%w: root id %q does not match %s<number>",
			ErrInvalidExternalKey,
			rootID,
			rootIDPrefix,
		)
	}
	return contract + "-" + rootID, nil
}

// ParseExternalKey splits an external key into its contract and root id
func ParseExternalKey(key string) (string, string, error) {
	idx := strings.LastIndex(key, "-"+rootIDPrefix)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidExternalKey, key)
	}
	contract, rootID := key[:idx], key[idx+1:]
	if _, err := ExternalKey(contract, rootID); err != nil {
		return "", "", err
	}
	return contract, rootID, nil
}

// MintResult is the success payload of a mint call
type MintResult struct {
	Contract string `json:"contract"`
	RootID   string `json:"root_id"`
}

// CommitMint records a confirmed mint: it assigns the next handle, indexes
// the external key, creates the zero income record and the empty catalog
// entry for the owner, and removes the draft. The checks all run before the
// first write so a rejected result leaves the ledger untouched.
func (l *Ledger) CommitMint(
	txn *database.Txn,
	call *models.PendingCall,
	result MintResult,
) (uint64, error) {
	if call.DraftId == nil || call.Owner == "" {
		return 0, fmt.Errorf("%w: mint call %s", ErrMissingCallContext, call.ID)
	}
	if result.Contract != call.Receiver {
		return 0, fmt.Errorf(
			"%w: minted on %q, expected %q",
			ErrInvalidMintResult,
			result.Contract,
			call.Receiver,
		)
	}
	key, err := ExternalKey(result.Contract, result.RootID)
	if err != nil {
		return 0, err
	}
	store := l.store()
	metadataTxn := txn.Metadata()
	if _, err := store.GetHandleByUniqId(key, metadataTxn); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateExternalKey, key)
	} else if !errors.Is(err, models.ErrHandleNotFound) {
		return 0, err
	}
	handle, err := store.GetCounter(handleCounter, metadataTxn)
	if err != nil {
		return 0, err
	}
	if _, err := store.GetHandleIndex(handle, metadataTxn); err == nil {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateHandle, handle)
	} else if !errors.Is(err, models.ErrHandleNotFound) {
		return 0, err
	}
	if _, err := store.GetIncomeRecord(handle, metadataTxn); err == nil {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateHandle, handle)
	} else if !errors.Is(err, models.ErrIncomeRecordNotFound) {
		return 0, err
	}
	// Checks passed, apply
	if _, err := store.NextCounter(handleCounter, metadataTxn); err != nil {
		return 0, err
	}
	if err := store.AddHandleIndex(handle, key, metadataTxn); err != nil {
		return 0, fmt.Errorf("add handle index: %w", err)
	}
	record := &models.IncomeRecord{
		Handle:         handle,
		TotalIncome:    decimal.Zero,
		CurrentBalance: decimal.Zero,
		RootId:         result.RootID,
		Contract:       result.Contract,
		Owner:          call.Owner,
	}
	if err := store.AddIncomeRecord(record, metadataTxn); err != nil {
		return 0, fmt.Errorf("add income record: %w", err)
	}
	if err := store.AddCatalogEntry(call.Owner, handle, metadataTxn); err != nil {
		return 0, fmt.Errorf("add catalog entry: %w", err)
	}
	if err := store.DeleteDraft(*call.DraftId, metadataTxn); err != nil {
		if !errors.Is(err, models.ErrDraftNotFound) {
			return 0, err
		}
		l.logger().Warn(
			"committed mint references a missing draft",
			"component", "ledger",
			"draft_id", *call.DraftId,
		)
	}
	l.metrics.mintsCommitted.Inc()
	l.logger().Info(
		"mint committed",
		"component", "ledger",
		"handle", handle,
		"external_key", key,
		"owner", call.Owner,
	)
	return handle, nil
}
