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

package proposal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/types"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Executor applies approved proposals and handles bonds on behalf of the
// store
type Executor interface {
	// Execute applies an approved proposal. It reports true when the effect
	// completes later, through OnCallback.
	Execute(txn *database.Txn, pol *policy.Policy, id uint64, p *Proposal) (bool, error)
	// ReturnBond sends the bond of a proposal back to its proposer
	ReturnBond(txn *database.Txn, id uint64, p *Proposal) error
}

type StoreConfig struct {
	Logger       *slog.Logger
	DB           *database.Database
	PromRegistry prometheus.Registerer
}

// Store keeps proposals in the blob store and drives them through their
// lifecycle
type Store struct {
	config  StoreConfig
	metrics storeMetrics
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{
		config: cfg,
	}
	s.metrics.init(cfg.PromRegistry)
	return s
}

// Get returns the proposal with the given id
func (s *Store) Get(
	txn *database.Txn,
	pol *policy.Policy,
	id uint64,
) (*Proposal, error) {
	data, err := s.config.DB.BlobGet(txn, types.ProposalBlobKey(id))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNoProposal, id)
		}
		return nil, err
	}
	return Decode(data, pol.ProposalBond)
}

func (s *Store) put(txn *database.Txn, id uint64, p *Proposal) error {
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("encode proposal %d: %w", id, err)
	}
	return s.config.DB.BlobSet(txn, types.ProposalBlobKey(id), data)
}

func (s *Store) delete(txn *database.Txn, id uint64) error {
	return s.config.DB.BlobDelete(txn, types.ProposalBlobKey(id))
}

// LastID returns the id the next proposal will get
func (s *Store) LastID(txn *database.Txn) (uint64, error) {
	return s.config.DB.GetBlobCounter(txn, types.LastProposalIdCounter)
}

// List returns up to limit proposals with ids starting at from. Deleted
// proposals are skipped.
func (s *Store) List(
	txn *database.Txn,
	pol *policy.Policy,
	from uint64,
	limit uint64,
) ([]Output, error) {
	lastID, err := s.LastID(txn)
	if err != nil {
		return nil, err
	}
	end := lastID
	if limit < lastID && from < lastID-limit {
		end = from + limit
	}
	ret := []Output{}
	for id := from; id < end; id++ {
		p, err := s.Get(txn, pol, id)
		if err != nil {
			if errors.Is(err, ErrNoProposal) {
				continue
			}
			return nil, err
		}
		ret = append(ret, Output{ID: id, Proposal: p})
	}
	return ret, nil
}

// LockedAmount returns the total of bonds held for open proposals
func (s *Store) LockedAmount(txn *database.Txn) (decimal.Decimal, error) {
	return s.config.DB.GetAmount(txn, types.LockedAmountBlobKey)
}

// Submit validates and stores a new proposal and returns its id. The
// attached bond is locked until the proposal is resolved.
func (s *Store) Submit(
	txn *database.Txn,
	pol *policy.Policy,
	user policy.UserInfo,
	input Input,
	bond decimal.Decimal,
	now time.Time,
) (uint64, error) {
	if input.Kind.Kind == nil {
		return 0, ErrUnknownKind
	}
	if v, ok := input.Kind.Kind.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return 0, err
		}
	}
	if bond.IsNegative() {
		return 0, fmt.Errorf("negative bond: %s", bond)
	}
	label := input.Kind.Label()
	if _, allowed := pol.CanExecute(user, label, policy.ActionAddProposal); !allowed {
		return 0, policy.ErrPermissionDenied
	}
	id, err := s.LastID(txn)
	if err != nil {
		return 0, err
	}
	p := &Proposal{
		Proposer:       user.AccountID,
		Description:    input.Description,
		Kind:           input.Kind,
		Status:         policy.StatusInProgress,
		VoteCounts:     map[string]policy.VoteCounts{},
		Votes:          map[string]policy.Vote{},
		SubmissionTime: uint64(now.UnixNano()), // #nosec G115
		Bond:           bond,
	}
	if err := s.put(txn, id, p); err != nil {
		return 0, err
	}
	if err := s.config.DB.SetBlobCounter(txn, types.LastProposalIdCounter, id+1); err != nil {
		return 0, err
	}
	if _, err := s.config.DB.AddAmount(txn, types.LockedAmountBlobKey, bond); err != nil {
		return 0, err
	}
	s.metrics.submitted.Inc()
	s.config.Logger.Info(
		"proposal submitted",
		"component", "proposal",
		"id", id,
		"label", label,
		"proposer", user.AccountID,
	)
	return id, nil
}

// Act applies action by user to a proposal and returns the updated proposal.
// A vote that resolves the proposal triggers its execution or releases its
// bond.
func (s *Store) Act(
	txn *database.Txn,
	pol *policy.Policy,
	user policy.UserInfo,
	id uint64,
	action policy.Action,
	totalSupply decimal.Decimal,
	exec Executor,
	now time.Time,
) (*Proposal, error) {
	p, err := s.Get(txn, pol, id)
	if err != nil {
		return nil, err
	}
	roles, allowed := pol.CanExecute(user, p.Kind.Label(), action)
	if !allowed {
		return nil, policy.ErrPermissionDenied
	}
	switch action {
	case policy.ActionAddProposal:
		return nil, ErrWrongAction
	case policy.ActionRemoveProposal:
		if err := s.delete(txn, id); err != nil {
			return nil, err
		}
		if p.bondLocked() {
			if err := s.releaseBond(txn, id, p, false, exec); err != nil {
				return nil, err
			}
		}
		p.Status = policy.StatusRemoved
		s.metrics.removed.Inc()
		return p, nil
	case policy.ActionVoteApprove, policy.ActionVoteReject, policy.ActionVoteRemove:
		if p.Status != policy.StatusInProgress {
			return nil, ErrProposalNotReadyForVote
		}
		vote, _ := action.Vote()
		if err := p.updateVotes(pol, user, roles, vote); err != nil {
			return nil, err
		}
		s.metrics.votes.WithLabelValues(vote.String()).Inc()
		p.Status = pol.ProposalStatus(p.tally(), roles, totalSupply, now)
		switch p.Status {
		case policy.StatusApproved:
			if err := s.execute(txn, pol, id, p, exec); err != nil {
				return nil, err
			}
		case policy.StatusRemoved:
			if err := s.delete(txn, id); err != nil {
				return nil, err
			}
			if err := s.releaseBond(txn, id, p, false, exec); err != nil {
				return nil, err
			}
			s.metrics.resolved.WithLabelValues(p.Status.String()).Inc()
			return p, nil
		case policy.StatusRejected:
			if err := s.releaseBond(txn, id, p, true, exec); err != nil {
				return nil, err
			}
		}
	case policy.ActionFinalize:
		if p.Status != policy.StatusInProgress && p.Status != policy.StatusFailed {
			return nil, ErrProposalNotInProgress
		}
		p.Status = pol.ProposalStatus(p.tally(), pol.RoleNames(), totalSupply, now)
		switch p.Status {
		case policy.StatusApproved:
			if err := s.execute(txn, pol, id, p, exec); err != nil {
				return nil, err
			}
		case policy.StatusExpired:
			if err := s.releaseBond(txn, id, p, true, exec); err != nil {
				return nil, err
			}
		default:
			return nil, ErrProposalNotExpiredOrFailed
		}
	case policy.ActionMoveToHub:
		// The hub lives elsewhere, the record stays as is
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrWrongAction, action)
	}
	if p.Status != policy.StatusInProgress {
		s.metrics.resolved.WithLabelValues(p.Status.String()).Inc()
	}
	if err := s.put(txn, id, p); err != nil {
		return nil, err
	}
	s.config.Logger.Debug(
		"proposal updated",
		"component", "proposal",
		"id", id,
		"action", action.String(),
		"user", user.AccountID,
		"status", p.Status.String(),
	)
	return p, nil
}

// OnCallback applies the result of an approved proposal's asynchronous
// execution. Success releases the bond. Failure marks the proposal Failed
// so it can be finalized again.
func (s *Store) OnCallback(
	txn *database.Txn,
	pol *policy.Policy,
	id uint64,
	success bool,
	exec Executor,
) (*Proposal, error) {
	p, err := s.Get(txn, pol, id)
	if err != nil {
		return nil, err
	}
	if !p.AwaitingCallback {
		return nil, fmt.Errorf("%w: %d", ErrCallbackNotExpected, id)
	}
	p.AwaitingCallback = false
	if success {
		p.Status = policy.StatusApproved
		if err := s.releaseBond(txn, id, p, true, exec); err != nil {
			return nil, err
		}
	} else {
		p.Status = policy.StatusFailed
	}
	if err := s.put(txn, id, p); err != nil {
		return nil, err
	}
	s.metrics.callbacks.WithLabelValues(strconv.FormatBool(success)).Inc()
	s.config.Logger.Info(
		"proposal execution completed",
		"component", "proposal",
		"id", id,
		"success", success,
	)
	return p, nil
}

func (s *Store) execute(
	txn *database.Txn,
	pol *policy.Policy,
	id uint64,
	p *Proposal,
	exec Executor,
) error {
	pending, err := exec.Execute(txn, pol, id, p)
	if err != nil {
		return err
	}
	if pending {
		p.AwaitingCallback = true
		return nil
	}
	return s.releaseBond(txn, id, p, true, exec)
}

// bondLocked reports whether the bond of p still counts toward the locked
// amount. It is released once the proposal resolves.
func (p *Proposal) bondLocked() bool {
	switch p.Status {
	case policy.StatusInProgress, policy.StatusFailed:
		return true
	case policy.StatusApproved:
		return p.AwaitingCallback
	default:
		return false
	}
}

// releaseBond unlocks the bond of a proposal, sending it back to the
// proposer when refund is set. An unrefunded bond stays with the DAO.
func (s *Store) releaseBond(
	txn *database.Txn,
	id uint64,
	p *Proposal,
	refund bool,
	exec Executor,
) error {
	if !p.Bond.IsPositive() {
		return nil
	}
	if _, err := s.config.DB.AddAmount(txn, types.LockedAmountBlobKey, p.Bond.Neg()); err != nil {
		return err
	}
	if !refund {
		return nil
	}
	return exec.ReturnBond(txn, id, p)
}
