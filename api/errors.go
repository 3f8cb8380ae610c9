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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
)

var (
	ErrMissingAccount = errors.New("missing " + AccountHeader + " header")
	ErrInvalidParam   = errors.New("invalid parameter")
)

type errorResponse struct {
	Error string `json:"error"`
}

var (
	badRequestErrors = []error{
		ErrInvalidParam,
		ledger.ErrInvalidAccountID,
		ledger.ErrInvalidExternalKey,
		ledger.ErrInvalidRevenueTable,
		ledger.ErrInvalidAmount,
		ledger.ErrDraftIncomplete,
		ledger.ErrPriceNotSet,
		ledger.ErrWrongPayment,
		ledger.ErrNoRevenueTable,
		proposal.ErrWrongAction,
		proposal.ErrBaseTokenNoMsg,
		proposal.ErrUnknownKind,
		policy.ErrInvalidPolicy,
		policy.ErrRoleWrongKind,
	}
	unauthorizedErrors = []error{
		ErrMissingAccount,
	}
	forbiddenErrors = []error{
		policy.ErrPermissionDenied,
		ledger.ErrMintRoleNotFound,
		ledger.ErrNotMintRoleMember,
		ledger.ErrNotDraftArtist,
		ledger.ErrNotOwner,
	}
	notFoundErrors = []error{
		proposal.ErrNoProposal,
		policy.ErrRoleNotFound,
		ledger.ErrDraftNotFound,
		ledger.ErrHandleNotFound,
		ledger.ErrNoFailedTransaction,
		extcall.ErrCallNotFound,
		models.ErrPendingCallNotFound,
	}
	conflictErrors = []error{
		proposal.ErrAlreadyVoted,
		proposal.ErrProposalNotInProgress,
		proposal.ErrProposalNotReadyForVote,
		proposal.ErrProposalNotExpiredOrFailed,
		proposal.ErrCallbackNotExpected,
		ledger.ErrDraftPendingMint,
		ledger.ErrDraftNotPendingMint,
		ledger.ErrDuplicateExternalKey,
		ledger.ErrDuplicateHandle,
		ledger.ErrRevenueTableExists,
		ledger.ErrTransferNotPending,
		extcall.ErrCallAlreadyCompleted,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	var validationErr *ledger.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case matchesAny(err, unauthorizedErrors):
		return http.StatusUnauthorized
	case matchesAny(err, forbiddenErrors):
		return http.StatusForbidden
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound
	case matchesAny(err, conflictErrors):
		return http.StatusConflict
	case matchesAny(err, badRequestErrors):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.config.Logger.Debug(
			"failed to write response",
			"error", err,
		)
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		a.config.Logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		a.config.Logger.Debug(
			"request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}
