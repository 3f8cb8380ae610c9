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

package proposal_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCouncil = []string{"alice.near", "bob.near", "carol.near"}

const (
	testModerator = "mod.near"
	testOutsider  = "outsider.near"
)

var testBond = decimal.NewFromInt(5)

type fakeExecutor struct {
	pending  bool
	err      error
	executed []uint64
	refunded []uint64
}

func (f *fakeExecutor) Execute(
	_ *database.Txn,
	_ *policy.Policy,
	id uint64,
	_ *proposal.Proposal,
) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.executed = append(f.executed, id)
	return f.pending, nil
}

func (f *fakeExecutor) ReturnBond(
	_ *database.Txn,
	id uint64,
	_ *proposal.Proposal,
) error {
	f.refunded = append(f.refunded, id)
	return nil
}

type testEnv struct {
	db     *database.Database
	store  *proposal.Store
	policy *policy.Policy
	exec   *fakeExecutor
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	reg := prometheus.NewRegistry()
	pol := policy.DefaultPolicy(testCouncil)
	pol.AddOrUpdateRole(
		policy.RolePermission{
			Name:        "moderators",
			Kind:        policy.Group(testModerator),
			Permissions: []string{"*:RemoveProposal"},
		},
	)
	return &testEnv{
		db: db,
		store: proposal.NewStore(proposal.StoreConfig{
			DB:           db,
			PromRegistry: reg,
		}),
		policy: pol,
		exec:   &fakeExecutor{},
		reg:    reg,
	}
}

func user(account string) policy.UserInfo {
	return policy.UserInfo{AccountID: account}
}

func (e *testEnv) submit(
	t *testing.T,
	kind proposal.Kind,
	now time.Time,
) (uint64, error) {
	t.Helper()
	var id uint64
	err := e.db.Transaction(true).Do(func(txn *database.Txn) error {
		var err error
		id, err = e.store.Submit(
			txn,
			e.policy,
			user(testOutsider),
			proposal.Input{
				Description: "test proposal",
				Kind:        proposal.ProposalKind{Kind: kind},
			},
			testBond,
			now,
		)
		return err
	})
	return id, err
}

func (e *testEnv) act(
	t *testing.T,
	account string,
	id uint64,
	action policy.Action,
) (*proposal.Proposal, error) {
	t.Helper()
	return e.actWeighted(t, user(account), id, action, decimal.Zero)
}

func (e *testEnv) actWeighted(
	t *testing.T,
	voter policy.UserInfo,
	id uint64,
	action policy.Action,
	totalSupply decimal.Decimal,
) (*proposal.Proposal, error) {
	t.Helper()
	var ret *proposal.Proposal
	err := e.db.Transaction(true).Do(func(txn *database.Txn) error {
		var err error
		ret, err = e.store.Act(
			txn,
			e.policy,
			voter,
			id,
			action,
			totalSupply,
			e.exec,
			time.Now(),
		)
		return err
	})
	return ret, err
}

func (e *testEnv) callback(
	t *testing.T,
	id uint64,
	success bool,
) (*proposal.Proposal, error) {
	t.Helper()
	var ret *proposal.Proposal
	err := e.db.Transaction(true).Do(func(txn *database.Txn) error {
		var err error
		ret, err = e.store.OnCallback(txn, e.policy, id, success, e.exec)
		return err
	})
	return ret, err
}

func (e *testEnv) get(t *testing.T, id uint64) (*proposal.Proposal, error) {
	t.Helper()
	txn := e.db.Transaction(false)
	defer txn.Release()
	return e.store.Get(txn, e.policy, id)
}

func (e *testEnv) locked(t *testing.T) decimal.Decimal {
	t.Helper()
	txn := e.db.Transaction(false)
	defer txn.Release()
	amount, err := e.store.LockedAmount(txn)
	require.NoError(t, err)
	return amount
}

func TestSubmitAndApprove(t *testing.T) {
	e := newTestEnv(t)
	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	assert.True(t, testBond.Equal(e.locked(t)))

	p, err := e.act(t, testCouncil[0], id, policy.ActionVoteApprove)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusInProgress, p.Status)

	_, err = e.act(t, testCouncil[0], id, policy.ActionVoteApprove)
	assert.ErrorIs(t, err, proposal.ErrAlreadyVoted)

	p, err = e.act(t, testCouncil[1], id, policy.ActionVoteApprove)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusApproved, p.Status)
	assert.Equal(t, []uint64{id}, e.exec.executed)
	assert.Equal(t, []uint64{id}, e.exec.refunded)
	assert.True(t, e.locked(t).IsZero())

	stored, err := e.get(t, id)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusApproved, stored.Status)
	assert.Len(t, stored.Votes, 2)
	assert.True(
		t,
		decimal.NewFromInt(2).Equal(stored.VoteCounts[policy.CouncilRole][policy.VoteApprove]),
	)

	_, err = e.act(t, testCouncil[2], id, policy.ActionVoteReject)
	assert.ErrorIs(t, err, proposal.ErrProposalNotReadyForVote)

	expected := `
# HELP fonodao_proposals_submitted_total total number of proposals submitted
# TYPE fonodao_proposals_submitted_total counter
fonodao_proposals_submitted_total 1
# HELP fonodao_proposal_votes_total total number of votes cast
# TYPE fonodao_proposal_votes_total counter
fonodao_proposal_votes_total{vote="Approve"} 2
`
	assert.NoError(
		t,
		testutil.GatherAndCompare(
			e.reg,
			strings.NewReader(expected),
			"fonodao_proposals_submitted_total",
			"fonodao_proposal_votes_total",
		),
	)
}

func TestSubmitIdsIncrease(t *testing.T) {
	e := newTestEnv(t)
	for i := range 3 {
		id, err := e.submit(t, proposal.SignalVote{}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id)
	}
	assert.True(t, testBond.Mul(decimal.NewFromInt(3)).Equal(e.locked(t)))
}

func TestSubmitRejectsInvalidKinds(t *testing.T) {
	e := newTestEnv(t)
	msg := "hello"
	testDefs := []struct {
		name    string
		kind    proposal.Kind
		wantErr error
	}{
		{
			name:    "no kind",
			kind:    nil,
			wantErr: proposal.ErrUnknownKind,
		},
		{
			name: "base token with message",
			kind: proposal.Transfer{
				ReceiverID: "bob.near",
				Amount:     decimal.NewFromInt(1),
				Msg:        &msg,
			},
			wantErr: proposal.ErrBaseTokenNoMsg,
		},
		{
			name:    "legacy policy",
			kind:    proposal.ChangePolicy{Policy: policy.Legacy(testCouncil)},
			wantErr: policy.ErrInvalidPolicy,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := e.submit(t, testDef.kind, time.Now())
			assert.ErrorIs(t, err, testDef.wantErr)
		})
	}
	assert.True(t, e.locked(t).IsZero())
}

func TestSubmitPermissionDenied(t *testing.T) {
	e := newTestEnv(t)
	e.policy.RemoveRole(policy.EveryoneRole)
	_, err := e.submit(t, proposal.SignalVote{}, time.Now())
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
}

func TestActChecks(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.act(t, testCouncil[0], 42, policy.ActionVoteApprove)
	assert.ErrorIs(t, err, proposal.ErrNoProposal)

	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	_, err = e.act(t, testOutsider, id, policy.ActionVoteApprove)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
	_, err = e.act(t, testCouncil[0], id, policy.ActionAddProposal)
	assert.ErrorIs(t, err, proposal.ErrWrongAction)
}

func TestRejectRefundsBond(t *testing.T) {
	e := newTestEnv(t)
	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	_, err = e.act(t, testCouncil[0], id, policy.ActionVoteReject)
	require.NoError(t, err)
	p, err := e.act(t, testCouncil[1], id, policy.ActionVoteReject)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusRejected, p.Status)
	assert.Empty(t, e.exec.executed)
	assert.Equal(t, []uint64{id}, e.exec.refunded)
	assert.True(t, e.locked(t).IsZero())
}

func TestVoteRemoveForfeitsBond(t *testing.T) {
	e := newTestEnv(t)
	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	_, err = e.act(t, testCouncil[0], id, policy.ActionVoteRemove)
	require.NoError(t, err)
	p, err := e.act(t, testCouncil[1], id, policy.ActionVoteRemove)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusRemoved, p.Status)
	assert.Empty(t, e.exec.refunded)
	assert.True(t, e.locked(t).IsZero())
	_, err = e.get(t, id)
	assert.ErrorIs(t, err, proposal.ErrNoProposal)
}

func TestRemoveProposal(t *testing.T) {
	e := newTestEnv(t)
	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	_, err = e.act(t, testCouncil[0], id, policy.ActionRemoveProposal)
	assert.ErrorIs(t, err, policy.ErrPermissionDenied)
	_, err = e.act(t, testModerator, id, policy.ActionRemoveProposal)
	require.NoError(t, err)
	_, err = e.get(t, id)
	assert.ErrorIs(t, err, proposal.ErrNoProposal)
	assert.Empty(t, e.exec.refunded)
}

func TestRemoveResolvedProposalKeepsOtherBonds(t *testing.T) {
	e := newTestEnv(t)
	first, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	_, err = e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	for _, account := range testCouncil[:2] {
		_, err = e.act(t, account, first, policy.ActionVoteApprove)
		require.NoError(t, err)
	}
	assert.True(t, testBond.Equal(e.locked(t)))
	// The approved proposal already released its bond
	_, err = e.act(t, testModerator, first, policy.ActionRemoveProposal)
	require.NoError(t, err)
	assert.True(t, testBond.Equal(e.locked(t)))
}

func TestRemovePendingProposalReleasesBond(t *testing.T) {
	e := newTestEnv(t)
	e.exec.pending = true
	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	for _, account := range testCouncil[:2] {
		_, err = e.act(t, account, id, policy.ActionVoteApprove)
		require.NoError(t, err)
	}
	assert.True(t, testBond.Equal(e.locked(t)))
	_, err = e.act(t, testModerator, id, policy.ActionRemoveProposal)
	require.NoError(t, err)
	assert.True(t, e.locked(t).IsZero())
	assert.Empty(t, e.exec.refunded)
}

func TestTokenWeightedVotes(t *testing.T) {
	totalSupply := decimal.NewFromInt(1000)
	testDefs := []struct {
		name string
		role policy.RolePermission
	}{
		{
			name: "member role",
			role: policy.RolePermission{
				Name:        "holders",
				Kind:        policy.Member(decimal.NewFromInt(1)),
				Permissions: []string{"vote:VoteApprove"},
			},
		},
		{
			name: "group role",
			role: policy.RolePermission{
				Name:        "holders",
				Kind:        policy.Group("whale.near", "minnow.near"),
				Permissions: []string{"vote:VoteApprove"},
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			e := newTestEnv(t)
			role := testDef.role
			role.VotePolicy = map[string]policy.VotePolicy{
				"vote": {
					WeightKind: policy.TokenWeight,
					Threshold:  policy.Ratio(1, 2),
				},
			}
			e.policy.AddOrUpdateRole(role)
			id, err := e.submit(t, proposal.SignalVote{}, time.Now())
			require.NoError(t, err)
			// 10 of 1000 tokens does not pass
			p, err := e.actWeighted(
				t,
				policy.UserInfo{AccountID: "minnow.near", Amount: decimal.NewFromInt(10)},
				id,
				policy.ActionVoteApprove,
				totalSupply,
			)
			require.NoError(t, err)
			assert.Equal(t, policy.StatusInProgress, p.Status)
			assert.True(
				t,
				decimal.NewFromInt(10).Equal(p.VoteCounts["holders"][policy.VoteApprove]),
			)
			// 501 of 1000 is a majority
			p, err = e.actWeighted(
				t,
				policy.UserInfo{AccountID: "whale.near", Amount: decimal.NewFromInt(491)},
				id,
				policy.ActionVoteApprove,
				totalSupply,
			)
			require.NoError(t, err)
			assert.Equal(t, policy.StatusApproved, p.Status)
			assert.Equal(t, []uint64{id}, e.exec.executed)
		})
	}
}

func TestFinalize(t *testing.T) {
	e := newTestEnv(t)
	fresh, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	old, err := e.submit(
		t,
		proposal.SignalVote{},
		time.Now().Add(-e.policy.ProposalPeriod-time.Hour),
	)
	require.NoError(t, err)

	_, err = e.act(t, testCouncil[0], fresh, policy.ActionFinalize)
	assert.ErrorIs(t, err, proposal.ErrProposalNotExpiredOrFailed)

	p, err := e.act(t, testCouncil[0], old, policy.ActionFinalize)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusExpired, p.Status)
	assert.Equal(t, []uint64{old}, e.exec.refunded)

	_, err = e.act(t, testCouncil[0], old, policy.ActionFinalize)
	assert.ErrorIs(t, err, proposal.ErrProposalNotInProgress)
	_, err = e.act(t, testCouncil[0], old, policy.ActionVoteApprove)
	assert.ErrorIs(t, err, proposal.ErrProposalNotReadyForVote)
}

func TestPendingExecution(t *testing.T) {
	e := newTestEnv(t)
	e.exec.pending = true
	id, err := e.submit(
		t,
		proposal.Transfer{ReceiverID: "bob.near", Amount: decimal.NewFromInt(3)},
		time.Now(),
	)
	require.NoError(t, err)

	_, err = e.callback(t, id, true)
	assert.ErrorIs(t, err, proposal.ErrCallbackNotExpected)

	_, err = e.act(t, testCouncil[0], id, policy.ActionVoteApprove)
	require.NoError(t, err)
	p, err := e.act(t, testCouncil[1], id, policy.ActionVoteApprove)
	require.NoError(t, err)
	assert.True(t, p.AwaitingCallback)
	assert.Empty(t, e.exec.refunded)
	assert.True(t, testBond.Equal(e.locked(t)))

	p, err = e.callback(t, id, false)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusFailed, p.Status)
	assert.False(t, p.AwaitingCallback)
	_, err = e.callback(t, id, false)
	assert.ErrorIs(t, err, proposal.ErrCallbackNotExpected)

	// A failed proposal keeps its votes and runs again on finalize
	p, err = e.act(t, testCouncil[2], id, policy.ActionFinalize)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusApproved, p.Status)
	assert.True(t, p.AwaitingCallback)
	assert.Equal(t, []uint64{id, id}, e.exec.executed)

	p, err = e.callback(t, id, true)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusApproved, p.Status)
	assert.Equal(t, []uint64{id}, e.exec.refunded)
	assert.True(t, e.locked(t).IsZero())
}

func TestExecutionErrorAbortsVote(t *testing.T) {
	e := newTestEnv(t)
	id, err := e.submit(t, proposal.SignalVote{}, time.Now())
	require.NoError(t, err)
	_, err = e.act(t, testCouncil[0], id, policy.ActionVoteApprove)
	require.NoError(t, err)
	e.exec.err = errors.New("boom")
	_, err = e.act(t, testCouncil[1], id, policy.ActionVoteApprove)
	require.Error(t, err)

	// The failed vote was rolled back with its transaction
	p, err := e.get(t, id)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusInProgress, p.Status)
	assert.Len(t, p.Votes, 1)
}

func TestList(t *testing.T) {
	e := newTestEnv(t)
	for range 4 {
		_, err := e.submit(t, proposal.SignalVote{}, time.Now())
		require.NoError(t, err)
	}
	_, err := e.act(t, testModerator, 1, policy.ActionRemoveProposal)
	require.NoError(t, err)

	txn := e.db.Transaction(false)
	defer txn.Release()
	lastID, err := e.store.LastID(txn)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), lastID)

	all, err := e.store.List(txn, e.policy, 0, 10)
	require.NoError(t, err)
	ids := make([]uint64, 0, len(all))
	for _, out := range all {
		ids = append(ids, out.ID)
	}
	assert.Equal(t, []uint64{0, 2, 3}, ids)

	page, err := e.store.List(txn, e.policy, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(2), page[0].ID)

	past, err := e.store.List(txn, e.policy, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, past)
}
