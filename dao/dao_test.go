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

package dao_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/blinklabs-io/fonodao/dao"
	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/event"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCouncil  = "council.near"
	testArtist   = "artist.near"
	testOther    = "other.near"
	testBuyer    = "buyer.near"
	testContract = "nft.near"
)

type testEnv struct {
	db  *database.Database
	bus *event.EventBus
	dao *dao.DAO
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	d, err := dao.New(dao.Config{
		DB:           db,
		EventBus:     bus,
		Orchestrator: extcall.NewOrchestrator(extcall.OrchestratorConfig{DB: db}),
		Council:      []string{testCouncil},
		Name:         "fono",
		Purpose:      "music",
	})
	require.NoError(t, err)
	return &testEnv{db: db, bus: bus, dao: d}
}

func strPtr(s string) *string {
	return &s
}

func (e *testEnv) submit(
	t *testing.T,
	caller string,
	kind proposal.Kind,
	bond decimal.Decimal,
) uint64 {
	t.Helper()
	id, err := e.dao.AddProposal(
		context.Background(),
		caller,
		proposal.Input{
			Description: "test",
			Kind:        proposal.ProposalKind{Kind: kind},
		},
		bond,
	)
	require.NoError(t, err)
	return id
}

func (e *testEnv) approve(t *testing.T, voter string, id uint64) *proposal.Proposal {
	t.Helper()
	p, err := e.dao.ActProposal(context.Background(), voter, id, policy.ActionVoteApprove, "")
	require.NoError(t, err)
	return p
}

// pass submits a proposal and approves it with a single vote
func (e *testEnv) pass(
	t *testing.T,
	caller string,
	voter string,
	kind proposal.Kind,
) (uint64, *proposal.Proposal) {
	t.Helper()
	id := e.submit(t, caller, kind, decimal.Zero)
	return id, e.approve(t, voter, id)
}

func (e *testEnv) pendingCalls(t *testing.T, purpose string) []extcall.Call {
	t.Helper()
	calls, err := e.dao.PendingCalls()
	require.NoError(t, err)
	var ret []extcall.Call
	for _, call := range calls {
		if call.Purpose == purpose {
			ret = append(ret, call)
		}
	}
	return ret
}

func (e *testEnv) pendingCall(t *testing.T, purpose string) extcall.Call {
	t.Helper()
	calls := e.pendingCalls(t, purpose)
	require.Len(t, calls, 1, "pending %s calls", purpose)
	return calls[0]
}

func (e *testEnv) complete(t *testing.T, callID string, success bool, value any) {
	t.Helper()
	result := extcall.Result{Success: success}
	if value != nil {
		data, err := json.Marshal(value)
		require.NoError(t, err)
		result.Value = data
	}
	require.NoError(t, e.dao.CompleteCall(context.Background(), callID, result))
}

func completeDraftInput() ledger.DraftInput {
	return ledger.DraftInput{
		Contract:         testContract,
		Title:            strPtr("Song"),
		Desc:             strPtr("A song"),
		ImageCid:         strPtr("bafyimage"),
		ImageHash:        strPtr("imagehash"),
		MusicFolderCid:   strPtr("bafymusic"),
		MusicFolderHash:  strPtr("musichash"),
		AnimationUrl:     strPtr("bafyanim"),
		AnimationUrlHash: strPtr("animhash"),
		MetaJsonCid:      strPtr("bafymeta"),
		MetaJsonHash:     strPtr("metahash"),
	}
}

// addArtist makes testArtist a minting member for testContract through a
// council proposal
func (e *testEnv) addArtist(t *testing.T) {
	t.Helper()
	_, p := e.pass(t, testCouncil, testCouncil, proposal.ChangePolicyAddOrUpdateRole{
		Role: policy.RolePermission{
			Name: policy.MasterRole(testContract),
			Kind: policy.Group(testArtist),
			Permissions: []string{
				proposal.LabelPrepairNft + ":*",
				proposal.LabelUpdatePrepairedNft + ":*",
				proposal.LabelMintRoot + ":*",
				proposal.LabelCreateRevenueTable + ":*",
				proposal.LabelAlterRevenueTable + ":*",
				proposal.LabelPayoutRevenue + ":*",
			},
		},
	})
	require.Equal(t, policy.StatusApproved, p.Status)
}

// mintAsset prepares, mints and commits an asset for testArtist and returns
// its handle
func (e *testEnv) mintAsset(t *testing.T, rootID string) uint64 {
	t.Helper()
	_, p := e.pass(t, testArtist, testArtist, proposal.PrepairNft{NftData: completeDraftInput()})
	require.Equal(t, policy.StatusApproved, p.Status)
	drafts, err := e.dao.Drafts()
	require.NoError(t, err)
	require.NotEmpty(t, drafts)
	draftID := drafts[len(drafts)-1].ID

	mintID, p := e.pass(t, testArtist, testArtist, proposal.MintRoot{ID: draftID})
	require.Equal(t, policy.StatusApproved, p.Status)
	require.True(t, p.AwaitingCallback)

	call := e.pendingCall(t, extcall.PurposeMint)
	require.NotNil(t, call.ProposalID)
	assert.Equal(t, mintID, *call.ProposalID)
	e.complete(t, call.ID, true, ledger.MintResult{Contract: testContract, RootID: rootID})

	out, err := e.dao.Proposal(mintID)
	require.NoError(t, err)
	assert.False(t, out.AwaitingCallback)
	handle, err := e.dao.Handle(testContract, rootID)
	require.NoError(t, err)
	return handle
}

func TestNewBootstrapsPolicyAndConfig(t *testing.T) {
	e := newTestEnv(t)
	pol, err := e.dao.Policy()
	require.NoError(t, err)
	found, member := pol.IsRoleMember(policy.CouncilRole, testCouncil)
	assert.True(t, found)
	assert.True(t, member)
	cfg, err := e.dao.Config()
	require.NoError(t, err)
	assert.Equal(t, "fono", cfg.Name)
	assert.Equal(t, "music", cfg.Purpose)
}

func TestNewRequiresStores(t *testing.T) {
	_, err := dao.New(dao.Config{})
	assert.ErrorIs(t, err, dao.ErrNoDatabase)
}

func TestAddProposalRejectsInvalidCaller(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.dao.AddProposal(
		context.Background(),
		"Not An Account",
		proposal.Input{Kind: proposal.ProposalKind{Kind: proposal.SignalVote{}}},
		decimal.Zero,
	)
	assert.ErrorIs(t, err, ledger.ErrInvalidAccountID)
}

func TestChangeConfigProposal(t *testing.T) {
	e := newTestEnv(t)
	_, submittedCh := e.bus.Subscribe(event.ProposalSubmittedEventType)
	_, p := e.pass(t, testCouncil, testCouncil, proposal.ChangeConfig{
		Config: proposal.Config{Name: "fono2", Purpose: "more music"},
	})
	assert.Equal(t, policy.StatusApproved, p.Status)
	cfg, err := e.dao.Config()
	require.NoError(t, err)
	assert.Equal(t, "fono2", cfg.Name)

	select {
	case evt := <-submittedCh:
		data, ok := evt.Data.(event.ProposalSubmittedEvent)
		require.True(t, ok)
		assert.Equal(t, proposal.LabelConfig, data.Label)
		assert.Equal(t, testCouncil, data.Proposer)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for submitted event")
	}
}

func TestAddMemberToUnknownRoleFails(t *testing.T) {
	e := newTestEnv(t)
	id := e.submit(t, testCouncil, proposal.AddMemberToRole{
		MemberID: testOther,
		Role:     "nope",
	}, decimal.Zero)
	_, err := e.dao.ActProposal(context.Background(), testCouncil, id, policy.ActionVoteApprove, "")
	assert.ErrorIs(t, err, policy.ErrRoleNotFound)

	// The failed vote left the proposal untouched
	out, err := e.dao.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusInProgress, out.Status)
	assert.Empty(t, out.Votes)
}

func TestAddMemberToRole(t *testing.T) {
	e := newTestEnv(t)
	e.pass(t, testCouncil, testCouncil, proposal.AddMemberToRole{
		MemberID: testOther,
		Role:     policy.CouncilRole,
	})
	pol, err := e.dao.Policy()
	require.NoError(t, err)
	_, member := pol.IsRoleMember(policy.CouncilRole, testOther)
	assert.True(t, member)
}

func TestMintBuyPayoutFlow(t *testing.T) {
	e := newTestEnv(t)
	e.addArtist(t)
	handle := e.mintAsset(t, "fono-root-0")
	assert.Equal(t, uint64(0), handle)

	drafts, err := e.dao.Drafts()
	require.NoError(t, err)
	assert.Empty(t, drafts)

	_, p := e.pass(t, testArtist, testArtist, proposal.CreateRevenueTable{
		RootID:      "fono-root-0",
		Contract:    testContract,
		UnsafeTable: ledger.RevenueTable{testArtist: 7000, testOther: 3000},
		Price:       decimal.NewFromInt(100),
	})
	require.Equal(t, policy.StatusApproved, p.Status)

	_, err = e.dao.BuyNFT(context.Background(), testBuyer, testContract, "fono-root-0", decimal.NewFromInt(99))
	assert.ErrorIs(t, err, ledger.ErrWrongPayment)
	callID, err := e.dao.BuyNFT(context.Background(), testBuyer, testContract, "fono-root-0", decimal.NewFromInt(100))
	require.NoError(t, err)
	e.complete(t, callID, true, nil)
	err = e.dao.CompleteCall(context.Background(), callID, extcall.Result{Success: true})
	assert.ErrorIs(t, err, extcall.ErrCallAlreadyCompleted)

	record, err := e.dao.IncomeRecord(handle)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(record.CurrentBalance))
	assert.True(t, decimal.NewFromInt(100).Equal(record.TotalIncome))

	_, p = e.pass(t, testArtist, testArtist, proposal.PayoutRevenue{TreeIndexList: []uint64{handle}})
	require.Equal(t, policy.StatusApproved, p.Status)
	record, err = e.dao.IncomeRecord(handle)
	require.NoError(t, err)
	assert.True(t, record.CurrentBalance.IsZero())
	assert.True(t, decimal.NewFromInt(100).Equal(record.TotalIncome))

	transfers := e.pendingCalls(t, extcall.PurposeTransfer)
	require.Len(t, transfers, 2)
	for _, call := range transfers {
		switch call.Receiver {
		case testArtist:
			assert.True(t, decimal.NewFromInt(70).Equal(call.Amount))
			e.complete(t, call.ID, true, nil)
		case testOther:
			assert.True(t, decimal.NewFromInt(30).Equal(call.Amount))
			e.complete(t, call.ID, false, nil)
		default:
			t.Fatalf("unexpected transfer to %s", call.Receiver)
		}
	}

	failed, err := e.dao.FailedTransactions(0, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, testOther, failed[0].Beneficiary)

	// Only the council may resend
	id := e.submit(t, testCouncil, proposal.ResendFailedTransaction{
		FailedID:   failed[0].ID,
		NewAddress: "new.near",
	}, decimal.Zero)
	e.approve(t, testCouncil, id)
	failed, err = e.dao.FailedTransactions(0, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
	resend := e.pendingCall(t, extcall.PurposeTransfer)
	assert.Equal(t, "new.near", resend.Receiver)
	assert.True(t, decimal.NewFromInt(30).Equal(resend.Amount))
}

func TestFailedBuyRefunds(t *testing.T) {
	e := newTestEnv(t)
	e.addArtist(t)
	handle := e.mintAsset(t, "fono-root-3")
	e.pass(t, testArtist, testArtist, proposal.CreateRevenueTable{
		RootID:      "fono-root-3",
		Contract:    testContract,
		UnsafeTable: ledger.RevenueTable{testArtist: 10000},
		Price:       decimal.NewFromInt(50),
	})
	_, refundCh := e.bus.Subscribe(event.BuyRefundedEventType)
	callID, err := e.dao.BuyNFT(context.Background(), testBuyer, testContract, "fono-root-3", decimal.NewFromInt(50))
	require.NoError(t, err)
	e.complete(t, callID, false, nil)

	record, err := e.dao.IncomeRecord(handle)
	require.NoError(t, err)
	assert.True(t, record.TotalIncome.IsZero())
	refund := e.pendingCall(t, extcall.PurposeTransfer)
	assert.Equal(t, testBuyer, refund.Receiver)
	assert.True(t, decimal.NewFromInt(50).Equal(refund.Amount))
	select {
	case evt := <-refundCh:
		data, ok := evt.Data.(event.BuyRefundedEvent)
		require.True(t, ok)
		assert.Equal(t, testBuyer, data.Buyer)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for refund event")
	}
}

func TestRejectedMintResultRestoresDraft(t *testing.T) {
	e := newTestEnv(t)
	e.addArtist(t)
	e.pass(t, testArtist, testArtist, proposal.PrepairNft{NftData: completeDraftInput()})
	drafts, err := e.dao.Drafts()
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	mintID, _ := e.pass(t, testArtist, testArtist, proposal.MintRoot{ID: drafts[0].ID})
	call := e.pendingCall(t, extcall.PurposeMint)

	drafts, err = e.dao.Drafts()
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, ledger.DraftStatePendingExternalConfirm, drafts[0].State)

	// Minted on a different contract than requested
	e.complete(t, call.ID, true, ledger.MintResult{Contract: "other.near", RootID: "fono-root-1"})
	drafts, err = e.dao.Drafts()
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, ledger.DraftStateDraft, drafts[0].State)
	count, err := e.dao.HandleCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	out, err := e.dao.Proposal(mintID)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusFailed, out.Status)

	// Finalizing a failed mint proposal tries again
	p, err := e.dao.ActProposal(context.Background(), testArtist, mintID, policy.ActionFinalize, "retry")
	require.NoError(t, err)
	assert.Equal(t, policy.StatusApproved, p.Status)
	assert.True(t, p.AwaitingCallback)
	retry := e.pendingCall(t, extcall.PurposeMint)
	assert.NotEqual(t, call.ID, retry.ID)
}

func TestTransferProposal(t *testing.T) {
	e := newTestEnv(t)
	bond := decimal.NewFromInt(10)
	id := e.submit(t, testOther, proposal.Transfer{
		ReceiverID: testBuyer,
		Amount:     decimal.NewFromInt(25),
	}, bond)
	locked, err := e.dao.LockedAmount()
	require.NoError(t, err)
	assert.True(t, bond.Equal(locked))

	p := e.approve(t, testCouncil, id)
	assert.True(t, p.AwaitingCallback)
	call := e.pendingCall(t, extcall.PurposeTransfer)
	assert.Equal(t, testBuyer, call.Receiver)

	e.complete(t, call.ID, true, nil)
	out, err := e.dao.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusApproved, out.Status)
	assert.False(t, out.AwaitingCallback)
	locked, err = e.dao.LockedAmount()
	require.NoError(t, err)
	assert.True(t, locked.IsZero())

	// The bond goes back to the proposer
	refund := e.pendingCall(t, extcall.PurposeTransfer)
	assert.Equal(t, testOther, refund.Receiver)
	assert.True(t, bond.Equal(refund.Amount))
}

func TestFunctionCallProposalWaitsForAllCalls(t *testing.T) {
	e := newTestEnv(t)
	id, p := e.pass(t, testCouncil, testCouncil, proposal.FunctionCall{
		ReceiverID: "app.near",
		Actions: []proposal.ActionCall{
			{MethodName: "first", Args: []byte(`{}`), Gas: 1},
			{MethodName: "second", Args: []byte(`{}`), Gas: 1},
		},
	})
	require.True(t, p.AwaitingCallback)
	calls := e.pendingCalls(t, extcall.PurposeProposal)
	require.Len(t, calls, 2)

	e.complete(t, calls[0].ID, true, nil)
	out, err := e.dao.Proposal(id)
	require.NoError(t, err)
	assert.True(t, out.AwaitingCallback)

	e.complete(t, calls[1].ID, true, nil)
	out, err = e.dao.Proposal(id)
	require.NoError(t, err)
	assert.False(t, out.AwaitingCallback)
	assert.Equal(t, policy.StatusApproved, out.Status)
}

func TestFungibleTokenTransferFailure(t *testing.T) {
	e := newTestEnv(t)
	msg := "deposit"
	id, p := e.pass(t, testCouncil, testCouncil, proposal.Transfer{
		TokenID:    "token.near",
		ReceiverID: testBuyer,
		Amount:     decimal.NewFromInt(5),
		Msg:        &msg,
	})
	require.True(t, p.AwaitingCallback)
	call := e.pendingCall(t, extcall.PurposeProposal)
	assert.Equal(t, "token.near", call.Receiver)
	assert.Equal(t, dao.FtTransferCallMethod, call.Method)
	assert.True(t, dao.OneYocto.Equal(call.Deposit))

	e.complete(t, call.ID, false, nil)
	out, err := e.dao.Proposal(id)
	require.NoError(t, err)
	assert.Equal(t, policy.StatusFailed, out.Status)
}

func TestStaticWeights(t *testing.T) {
	w := dao.StaticWeights{
		"a.near": decimal.NewFromInt(3),
		"b.near": decimal.NewFromInt(4),
	}
	assert.True(t, decimal.NewFromInt(7).Equal(w.TotalSupply()))
	assert.True(t, decimal.NewFromInt(3).Equal(w.Weight("a.near")))
	assert.True(t, w.Weight("c.near").IsZero())
}
