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
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AddProposalRequest struct {
	Proposal proposal.Input  `json:"proposal"`
	Deposit  decimal.Decimal `json:"deposit"`
}

type AddProposalResponse struct {
	ID uint64 `json:"id"`
}

type ActProposalRequest struct {
	Action policy.Action `json:"action"`
	Memo   string        `json:"memo,omitempty"`
}

type BuyRequest struct {
	Contract string          `json:"contract"`
	RootID   string          `json:"root_id"`
	Deposit  decimal.Decimal `json:"deposit"`
}

type BuyResponse struct {
	CallID string `json:"call_id"`
}

type CallStatus struct {
	extcall.Call
	State       string     `json:"state"`
	Success     *bool      `json:"success,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (a *API) account(r *http.Request) (string, error) {
	account := strings.TrimSpace(r.Header.Get(AccountHeader))
	if account == "" {
		return "", ErrMissingAccount
	}
	return account, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: request body: %s", ErrInvalidParam, err)
	}
	return nil
}

func uint64Param(value string, name string) (uint64, error) {
	ret, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q", ErrInvalidParam, name, value)
	}
	return ret, nil
}

// pageParams reads the from/limit query parameters. A missing limit gets the
// default and anything above the maximum is clamped.
func pageParams(r *http.Request) (int, int, error) {
	from := 0
	limit := DefaultPageLimit
	query := r.URL.Query()
	if value := query.Get("from"); value != "" {
		tmpFrom, err := strconv.Atoi(value)
		if err != nil || tmpFrom < 0 {
			return 0, 0, fmt.Errorf("%w: from: %q", ErrInvalidParam, value)
		}
		from = tmpFrom
	}
	if value := query.Get("limit"); value != "" {
		tmpLimit, err := strconv.Atoi(value)
		if err != nil || tmpLimit < 0 {
			return 0, 0, fmt.Errorf("%w: limit: %q", ErrInvalidParam, value)
		}
		limit = tmpLimit
	}
	limit = min(limit, MaxPageLimit)
	return from, limit, nil
}

func (a *API) handleAddProposal(w http.ResponseWriter, r *http.Request) {
	caller, err := a.account(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req AddProposalRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id, err := a.config.DAO.AddProposal(
		r.Context(),
		caller,
		req.Proposal,
		req.Deposit,
	)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, AddProposalResponse{ID: id})
}

func (a *API) handleActProposal(w http.ResponseWriter, r *http.Request) {
	caller, err := a.account(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	id, err := uint64Param(chi.URLParam(r, "id"), "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req ActProposalRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.config.DAO.ActProposal(
		r.Context(),
		caller,
		id,
		req.Action,
		req.Memo,
	)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, proposal.Output{ID: id, Proposal: p})
}

func (a *API) handleBuy(w http.ResponseWriter, r *http.Request) {
	buyer, err := a.account(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req BuyRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	callID, err := a.config.DAO.BuyNFT(
		r.Context(),
		buyer,
		req.Contract,
		req.RootID,
		req.Deposit,
	)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusAccepted, BuyResponse{CallID: callID})
}

func (a *API) handleCompleteCall(w http.ResponseWriter, r *http.Request) {
	var result extcall.Result
	if err := decodeBody(r, &result); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.config.DAO.CompleteCall(
		r.Context(),
		chi.URLParam(r, "id"),
		result,
	); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePolicy(w http.ResponseWriter, r *http.Request) {
	pol, err := a.config.DAO.Policy()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, pol)
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.config.DAO.Config()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleLockedAmount(w http.ResponseWriter, r *http.Request) {
	locked, err := a.config.DAO.LockedAmount()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"locked_amount": locked})
}

func (a *API) handleLastProposalID(w http.ResponseWriter, r *http.Request) {
	id, err := a.config.DAO.LastProposalID()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]uint64{"last_proposal_id": id})
}

func (a *API) handleProposals(w http.ResponseWriter, r *http.Request) {
	from, limit, err := pageParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	// #nosec G115 -- both are validated non-negative
	proposals, err := a.config.DAO.Proposals(uint64(from), uint64(limit))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, proposals)
}

func (a *API) handleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uint64Param(chi.URLParam(r, "id"), "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.config.DAO.Proposal(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := a.config.DAO.Drafts()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, drafts)
}

// handleCatalogue returns a page of an artist's catalog, or the entries for
// an explicit comma-separated handle list
func (a *API) handleCatalogue(w http.ResponseWriter, r *http.Request) {
	artist := chi.URLParam(r, "artist")
	if value := r.URL.Query().Get("handles"); value != "" {
		var handles []uint64
		for _, item := range strings.Split(value, ",") {
			handle, err := uint64Param(strings.TrimSpace(item), "handles")
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			handles = append(handles, handle)
		}
		entries, err := a.config.DAO.CatalogueEntries(artist, handles)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, http.StatusOK, entries)
		return
	}
	from, limit, err := pageParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	entries, err := a.config.DAO.Catalogue(artist, from, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleIncomeRecords(w http.ResponseWriter, r *http.Request) {
	from, limit, err := pageParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	records, err := a.config.DAO.IncomeRecords(from, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, records)
}

func (a *API) handleIncomeRecord(w http.ResponseWriter, r *http.Request) {
	handle, err := uint64Param(chi.URLParam(r, "handle"), "handle")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	record, err := a.config.DAO.IncomeRecord(handle)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, record)
}

func assetParams(r *http.Request) (string, string, error) {
	contract := r.URL.Query().Get("contract")
	rootID := r.URL.Query().Get("root_id")
	if contract == "" || rootID == "" {
		return "", "", fmt.Errorf("%w: contract and root_id are required", ErrInvalidParam)
	}
	return contract, rootID, nil
}

func (a *API) handlePrice(w http.ResponseWriter, r *http.Request) {
	contract, rootID, err := assetParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	price, err := a.config.DAO.Price(contract, rootID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]*decimal.Decimal{"price": price})
}

func (a *API) handleHandleLookup(w http.ResponseWriter, r *http.Request) {
	contract, rootID, err := assetParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	handle, err := a.config.DAO.Handle(contract, rootID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ledger.HandleEntry{
		Handle:      handle,
		ExternalKey: contract + "-" + rootID,
	})
}

func (a *API) handleHandles(w http.ResponseWriter, r *http.Request) {
	from, limit, err := pageParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	handles, err := a.config.DAO.Handles(from, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, handles)
}

func (a *API) handleHandleCount(w http.ResponseWriter, r *http.Request) {
	count, err := a.config.DAO.HandleCount()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (a *API) handleFailedTransactions(w http.ResponseWriter, r *http.Request) {
	from, limit, err := pageParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	failed, err := a.config.DAO.FailedTransactions(from, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, failed)
}

func (a *API) handlePendingCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := a.config.DAO.PendingCalls()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, calls)
}

func (a *API) handlePendingCall(w http.ResponseWriter, r *http.Request) {
	record, err := a.config.DAO.PendingCall(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, CallStatus{
		Call:        extcall.CallFromRecord(*record),
		State:       record.State,
		Success:     record.Success,
		CreatedAt:   record.CreatedAt,
		CompletedAt: record.CompletedAt,
	})
}
