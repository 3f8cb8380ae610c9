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

	"github.com/blinklabs-io/fonodao/database/models"
)

var (
	ErrMintRoleNotFound     = errors.New("minting role not found")
	ErrNotMintRoleMember    = errors.New("caller may not mint on this contract")
	ErrDraftNotFound        = models.ErrDraftNotFound
	ErrNotDraftArtist       = errors.New("only the artist who created the draft may change or mint it")
	ErrDraftIncomplete      = errors.New("draft is not complete")
	ErrDraftPendingMint     = errors.New("draft has a mint in progress")
	ErrDraftNotPendingMint  = errors.New("draft has no mint in progress")
	ErrInvalidExternalKey   = errors.New("invalid external key")
	ErrDuplicateExternalKey = errors.New("external key already exists")
	ErrDuplicateHandle      = errors.New("duplicate handle")
	ErrHandleNotFound       = errors.New("handle not found")
	ErrNotOwner             = errors.New("only the owner may change the revenue table")
	ErrInvalidRevenueTable  = errors.New("invalid revenue table")
	ErrRevenueTableExists   = errors.New("revenue table already exists")
	ErrNoRevenueTable       = errors.New("no revenue table")
	ErrPriceNotSet          = errors.New("price is not set")
	ErrWrongPayment         = errors.New("payment must equal the price exactly")
	ErrNoFailedTransaction  = errors.New("ERR_NO_FAILED_TRANSACTION")
	ErrTransferNotPending   = errors.New("transfer is not pending")
	ErrInvalidAmount        = errors.New("transfer amount must be positive")
	ErrInvalidAccountID     = errors.New("invalid account id")
	ErrInvalidMintResult    = errors.New("invalid mint result")
	ErrMissingCallContext   = errors.New("external call is missing its context")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
