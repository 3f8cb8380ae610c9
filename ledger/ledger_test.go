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

package ledger_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "nft.near"
	testArtist   = "artist.near"
	testOther    = "other.near"
	testCouncil  = "council.near"
	testBuyer    = "buyer.near"
)

type testEnv struct {
	db     *database.Database
	orch   *extcall.Orchestrator
	ledger *ledger.Ledger
	policy *policy.Policy
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	orch := extcall.NewOrchestrator(extcall.OrchestratorConfig{DB: db})
	pol := policy.DefaultPolicy([]string{testCouncil})
	pol.AddOrUpdateRole(
		policy.RolePermission{
			Name:        policy.MasterRole(testContract),
			Kind:        policy.Group(testArtist, testOther),
			Permissions: []string{"*:AddProposal"},
		},
	)
	return &testEnv{
		db:   db,
		orch: orch,
		ledger: ledger.New(ledger.LedgerConfig{
			DB:           db,
			Orchestrator: orch,
		}),
		policy: pol,
	}
}

func (e *testEnv) update(t *testing.T, fn func(*database.Txn) error) error {
	t.Helper()
	return e.db.Transaction(true).Do(fn)
}

// view runs fn in a read-only transaction that is released before returning
func (e *testEnv) view(t *testing.T, fn func(*database.Txn)) {
	t.Helper()
	txn := e.db.Transaction(false)
	defer txn.Release()
	fn(txn)
}

func strPtr(s string) *string {
	return &s
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

func (e *testEnv) prepare(t *testing.T, input ledger.DraftInput) uint64 {
	t.Helper()
	var id uint64
	require.NoError(t, e.update(t, func(txn *database.Txn) error {
		var err error
		id, err = e.ledger.Prepare(txn, e.policy, testArtist, input, time.Now())
		return err
	}))
	return id
}

func (e *testEnv) beginMint(t *testing.T, draftID uint64) extcall.Call {
	t.Helper()
	var call extcall.Call
	require.NoError(t, e.update(t, func(txn *database.Txn) error {
		var err error
		call, err = e.ledger.BeginMint(txn, e.policy, testArtist, draftID, nil, time.Now())
		return err
	}))
	return call
}

func (e *testEnv) commitMint(
	t *testing.T,
	callID string,
	rootID string,
) (uint64, error) {
	t.Helper()
	var handle uint64
	err := e.update(t, func(txn *database.Txn) error {
		record, err := e.orch.Complete(txn, callID, true, time.Now())
		if err != nil {
			return err
		}
		handle, err = e.ledger.CommitMint(
			txn,
			record,
			ledger.MintResult{Contract: testContract, RootID: rootID},
		)
		return err
	})
	return handle, err
}

// mint runs a draft through the whole mint flow and returns its handle
func (e *testEnv) mint(t *testing.T, rootID string) uint64 {
	t.Helper()
	draftID := e.prepare(t, completeDraftInput())
	call := e.beginMint(t, draftID)
	handle, err := e.commitMint(t, call.ID, rootID)
	require.NoError(t, err)
	return handle
}

func TestDraftInputRequiresHashes(t *testing.T) {
	testDefs := []struct {
		input ledger.DraftInput
		field string
	}{
		{ledger.DraftInput{Contract: testContract, ImageCid: strPtr("x")}, "image_cid"},
		{ledger.DraftInput{Contract: testContract, MusicFolderCid: strPtr("x")}, "music_folder_cid"},
		{ledger.DraftInput{Contract: testContract, AnimationUrl: strPtr("x")}, "animation_url"},
		{ledger.DraftInput{Contract: testContract, MetaJsonCid: strPtr("x")}, "meta_json_cid"},
		{ledger.DraftInput{}, "contract"},
	}
	env := newTestEnv(t)
	for _, testDef := range testDefs {
		err := env.update(t, func(txn *database.Txn) error {
			_, err := env.ledger.Prepare(txn, env.policy, testArtist, testDef.input, time.Now())
			return err
		})
		var validationErr *ledger.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, testDef.field, validationErr.Field)
	}
	// A hash without its reference is fine
	env.prepare(t, ledger.DraftInput{Contract: testContract, ImageHash: strPtr("x")})
}

func TestPrepareRequiresMintRole(t *testing.T) {
	env := newTestEnv(t)
	err := env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.Prepare(txn, env.policy, testBuyer, completeDraftInput(), time.Now())
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrNotMintRoleMember)
	input := completeDraftInput()
	input.Contract = "unknown.near"
	err = env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.Prepare(txn, env.policy, testArtist, input, time.Now())
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrMintRoleNotFound)
}

func TestDraftIdsAreNeverReused(t *testing.T) {
	env := newTestEnv(t)
	first := env.prepare(t, completeDraftInput())
	second := env.prepare(t, completeDraftInput())
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)
	call := env.beginMint(t, first)
	_, err := env.commitMint(t, call.ID, "fono-root-0")
	require.NoError(t, err)
	third := env.prepare(t, completeDraftInput())
	assert.Equal(t, uint64(2), third)
}

func TestMintRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	input := completeDraftInput()
	input.Title = nil
	draftID := env.prepare(t, input)

	// Incomplete drafts can't be minted
	err := env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.BeginMint(txn, env.policy, testArtist, draftID, nil, time.Now())
		return err
	})
	require.ErrorIs(t, err, ledger.ErrDraftIncomplete)

	// Only the original artist may update
	err = env.update(t, func(txn *database.Txn) error {
		return env.ledger.Update(txn, env.policy, testOther, draftID, completeDraftInput())
	})
	require.ErrorIs(t, err, ledger.ErrNotDraftArtist)
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		return env.ledger.Update(txn, env.policy, testArtist, draftID, completeDraftInput())
	}))

	call := env.beginMint(t, draftID)
	assert.Equal(t, extcall.PurposeMint, call.Purpose)
	assert.Equal(t, testContract, call.Receiver)
	assert.Equal(t, extcall.MintMethod, call.Method)
	assert.True(t, call.Deposit.Equal(decimal.New(2, 23)))
	assert.Equal(t, extcall.MintGas, call.Gas)
	var args struct {
		ReceiverID string `json:"receiver_id"`
		Metadata   struct {
			Title     string  `json:"title"`
			MediaHash string  `json:"media_hash"`
			Copies    *uint64 `json:"copies"`
			Extra     string  `json:"extra"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(call.Args, &args))
	assert.Equal(t, testArtist, args.ReceiverID)
	assert.Equal(t, "Song", args.Metadata.Title)
	assert.Equal(t, "imagehash", args.Metadata.MediaHash)
	assert.Nil(t, args.Metadata.Copies)
	var extra map[string]any
	require.NoError(t, json.Unmarshal([]byte(args.Metadata.Extra), &extra))
	assert.Equal(t, "bafymusic", extra["music_cid"])
	assert.Nil(t, extra["parent"])
	assert.InDelta(t, 999999999, extra["instance_nonce"], 0)

	// The draft is kept, but locked, while the mint is outstanding
	env.view(t, func(txn *database.Txn) {
		draft, err := env.ledger.Draft(txn, draftID)
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftStatePendingExternalConfirm, draft.State)
		assert.Equal(t, call.ID, draft.MintCallID)
	})
	err = env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.BeginMint(txn, env.policy, testArtist, draftID, nil, time.Now())
		return err
	})
	require.ErrorIs(t, err, ledger.ErrDraftPendingMint)
	err = env.update(t, func(txn *database.Txn) error {
		return env.ledger.Update(txn, env.policy, testArtist, draftID, completeDraftInput())
	})
	require.ErrorIs(t, err, ledger.ErrDraftPendingMint)

	handle, err := env.commitMint(t, call.ID, "fono-root-7")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), handle)

	env.view(t, func(txn *database.Txn) {
		drafts, err := env.ledger.Drafts(txn)
		require.NoError(t, err)
		assert.Empty(t, drafts)
		record, err := env.ledger.IncomeRecord(txn, handle)
		require.NoError(t, err)
		assert.True(t, record.TotalIncome.IsZero())
		assert.True(t, record.CurrentBalance.IsZero())
		assert.Nil(t, record.Price)
		assert.Equal(t, testArtist, record.Owner)
		assert.Equal(t, "fono-root-7", record.RootID)
		catalog, err := env.ledger.Catalogue(txn, testArtist, 0, -1)
		require.NoError(t, err)
		require.Len(t, catalog, 1)
		assert.Equal(t, handle, catalog[0].Handle)
		assert.Nil(t, catalog[0].RevenueTable)
		gotHandle, err := env.ledger.Handle(txn, testContract, "fono-root-7")
		require.NoError(t, err)
		assert.Equal(t, handle, gotHandle)
		count, err := env.ledger.HandleCount(txn)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})

	// The mint call completes only once
	_, err = env.commitMint(t, call.ID, "fono-root-7")
	require.ErrorIs(t, err, extcall.ErrCallAlreadyCompleted)
}

func TestCommitMintRejectsDuplicateKey(t *testing.T) {
	env := newTestEnv(t)
	env.mint(t, "fono-root-1")
	draftID := env.prepare(t, completeDraftInput())
	call := env.beginMint(t, draftID)
	_, err := env.commitMint(t, call.ID, "fono-root-1")
	require.ErrorIs(t, err, ledger.ErrDuplicateExternalKey)
	env.view(t, func(txn *database.Txn) {
		count, err := env.ledger.HandleCount(txn)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
		records, err := env.ledger.IncomeRecords(txn, 0, 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		catalog, err := env.ledger.Catalogue(txn, testArtist, 0, -1)
		require.NoError(t, err)
		assert.Len(t, catalog, 1)
	})
}

func TestCommitMintRejectsInvalidResult(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.prepare(t, completeDraftInput())
	call := env.beginMint(t, draftID)
	_, err := env.commitMint(t, call.ID, "root-1")
	require.ErrorIs(t, err, ledger.ErrInvalidExternalKey)
}

func TestFailMintRestoresDraft(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.prepare(t, completeDraftInput())
	env.beginMint(t, draftID)
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		return env.ledger.FailMint(txn, draftID)
	}))
	env.view(t, func(txn *database.Txn) {
		draft, err := env.ledger.Draft(txn, draftID)
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftStateDraft, draft.State)
		assert.Empty(t, draft.MintCallID)
	})
	// The draft can be minted again
	call := env.beginMint(t, draftID)
	_, err := env.commitMint(t, call.ID, "fono-root-2")
	require.NoError(t, err)
	err = env.update(t, func(txn *database.Txn) error {
		return env.ledger.FailMint(txn, 99)
	})
	require.NoError(t, err)
}

func TestExternalKey(t *testing.T) {
	testDefs := []struct {
		contract string
		rootID   string
		valid    bool
	}{
		{"nft.near", "fono-root-5", true},
		{"my-nft_1.testnet", "fono-root-123", true},
		{"Nft.near", "fono-root-5", false},
		{"a", "fono-root-5", false},
		{"nft..near", "fono-root-5", false},
		{"nft.near", "root-5", false},
		{"nft.near", "fono-root-", false},
		{"nft.near", "fono-root-5a", false},
	}
	for _, testDef := range testDefs {
		key, err := ledger.ExternalKey(testDef.contract, testDef.rootID)
		if !testDef.valid {
			assert.ErrorIs(t, err, ledger.ErrInvalidExternalKey, testDef.contract+" "+testDef.rootID)
			continue
		}
		require.NoError(t, err)
		contract, rootID, err := ledger.ParseExternalKey(key)
		require.NoError(t, err)
		assert.Equal(t, testDef.contract, contract)
		assert.Equal(t, testDef.rootID, rootID)
	}
}

func TestRevenueTableValidate(t *testing.T) {
	assert.NoError(t, ledger.RevenueTable{"a.near": 9000, "b.near": 1000}.Validate())
	assert.ErrorIs(
		t,
		ledger.RevenueTable{"a.near": 9000, "b.near": 999}.Validate(),
		ledger.ErrInvalidRevenueTable,
	)
	assert.ErrorIs(t, ledger.RevenueTable{}.Validate(), ledger.ErrInvalidRevenueTable)
	assert.ErrorIs(
		t,
		ledger.RevenueTable{"Bad Payee": 10000}.Validate(),
		ledger.ErrInvalidRevenueTable,
	)
	// 16 payees is the limit
	table := ledger.RevenueTable{}
	for i := range 16 {
		table[string(rune('a'+i))+"x.near"] = 625
	}
	assert.NoError(t, table.Validate())
	table["zz.near"] = 0
	assert.ErrorIs(t, table.Validate(), ledger.ErrInvalidRevenueTable)
}

func TestRevenueTableSplit(t *testing.T) {
	table := ledger.RevenueTable{"a.near": 9000, "b.near": 1000}
	amounts, remainder := table.Split(decimal.New(5, 24))
	assert.True(t, amounts["a.near"].Equal(decimal.New(45, 23)))
	assert.True(t, amounts["b.near"].Equal(decimal.New(5, 23)))
	assert.True(t, remainder.IsZero())

	table = ledger.RevenueTable{"a.near": 3333, "b.near": 3333, "c.near": 3334}
	amounts, remainder = table.Split(decimal.NewFromInt(10))
	assert.True(t, amounts["a.near"].Equal(decimal.NewFromInt(3)))
	assert.True(t, amounts["c.near"].Equal(decimal.NewFromInt(3)))
	assert.True(t, remainder.Equal(decimal.NewFromInt(1)))
}

func (e *testEnv) createTable(
	t *testing.T,
	caller string,
	rootID string,
	table ledger.RevenueTable,
	price decimal.Decimal,
) error {
	t.Helper()
	return e.update(t, func(txn *database.Txn) error {
		_, err := e.ledger.CreateRevenueTable(txn, caller, testContract, rootID, table, price)
		return err
	})
}

func (e *testEnv) buy(
	t *testing.T,
	rootID string,
	payment decimal.Decimal,
) (extcall.Call, error) {
	t.Helper()
	var call extcall.Call
	err := e.update(t, func(txn *database.Txn) error {
		var err error
		call, err = e.ledger.Buy(txn, testBuyer, testContract, rootID, payment, time.Now())
		return err
	})
	return call, err
}

func (e *testEnv) completeBuy(
	t *testing.T,
	callID string,
	success bool,
) *ledger.BuyOutcome {
	t.Helper()
	var outcome *ledger.BuyOutcome
	require.NoError(t, e.update(t, func(txn *database.Txn) error {
		record, err := e.orch.Complete(txn, callID, success, time.Now())
		if err != nil {
			return err
		}
		outcome, err = e.ledger.CompleteBuy(txn, record, success, time.Now())
		return err
	}))
	return outcome
}

func TestRevenueTableAndPayout(t *testing.T) {
	env := newTestEnv(t)
	handle := env.mint(t, "fono-root-1")
	table := ledger.RevenueTable{"a.near": 9000, "b.near": 1000}
	price := decimal.New(5, 24)

	require.ErrorIs(
		t,
		env.createTable(t, testOther, "fono-root-1", table, price),
		ledger.ErrNotOwner,
	)
	require.ErrorIs(
		t,
		env.createTable(t, testArtist, "fono-root-1", ledger.RevenueTable{"a.near": 5000}, price),
		ledger.ErrInvalidRevenueTable,
	)
	require.ErrorIs(
		t,
		env.createTable(t, testArtist, "fono-root-9", table, price),
		ledger.ErrHandleNotFound,
	)
	// Rejected attempts leave no price behind
	env.view(t, func(txn *database.Txn) {
		gotPrice, err := env.ledger.Price(txn, testContract, "fono-root-1")
		require.NoError(t, err)
		assert.Nil(t, gotPrice)
	})
	require.NoError(t, env.createTable(t, testArtist, "fono-root-1", table, price))
	require.ErrorIs(
		t,
		env.createTable(t, testArtist, "fono-root-1", table, price),
		ledger.ErrRevenueTableExists,
	)
	// Altering is the update path
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		return env.ledger.AlterRevenueTable(txn, testArtist, handle, table, price)
	}))
	err := env.update(t, func(txn *database.Txn) error {
		return env.ledger.AlterRevenueTable(txn, testOther, handle, table, price)
	})
	require.ErrorIs(t, err, ledger.ErrNotOwner)

	call, err := env.buy(t, "fono-root-1", price)
	require.NoError(t, err)
	assert.True(t, call.Deposit.Equal(price.Add(decimal.New(1, 22))))
	assert.JSONEq(t, `{"root_id":"fono-root-1"}`, string(call.Args))
	env.completeBuy(t, call.ID, true)

	// Strangers can't trigger a payout
	var result *ledger.PayoutResult
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		var err error
		result, err = env.ledger.Payout(txn, env.policy, testBuyer, []uint64{handle}, time.Now())
		return err
	}))
	assert.Equal(t, []uint64{handle}, result.NotPaid)
	assert.Empty(t, result.Calls)

	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		var err error
		result, err = env.ledger.Payout(txn, env.policy, testArtist, []uint64{handle}, time.Now())
		return err
	}))
	assert.Equal(t, []uint64{handle}, result.Paid)
	require.Len(t, result.Calls, 2)
	assert.True(t, result.Amounts["a.near"].Equal(decimal.New(45, 23)))
	assert.True(t, result.Amounts["b.near"].Equal(decimal.New(5, 23)))
	assert.True(t, result.Remainder.IsZero())
	for _, call := range result.Calls {
		assert.Equal(t, extcall.PurposeTransfer, call.Purpose)
		assert.Equal(t, extcall.TransferGas, call.Gas)
		require.NotNil(t, call.TransferID)
	}

	env.view(t, func(txn *database.Txn) {
		record, err := env.ledger.IncomeRecord(txn, handle)
		require.NoError(t, err)
		assert.True(t, record.CurrentBalance.IsZero())
		assert.True(t, record.TotalIncome.Equal(price))
		transfer, err := env.ledger.Transfer(txn, *result.Calls[0].TransferID)
		require.NoError(t, err)
		assert.Equal(t, models.TransferStatePending, transfer.State)
		assert.Equal(t, models.TransferKindPayout, transfer.Kind)
		assert.NotEmpty(t, transfer.TraceID)
	})
}

func TestPayoutByCouncilKeepsRemainder(t *testing.T) {
	env := newTestEnv(t)
	handle := env.mint(t, "fono-root-1")
	price := decimal.NewFromInt(10)
	require.NoError(t, env.createTable(
		t,
		testArtist,
		"fono-root-1",
		ledger.RevenueTable{"a.near": 3333, "b.near": 3333, "c.near": 3334},
		price,
	))
	call, err := env.buy(t, "fono-root-1", price)
	require.NoError(t, err)
	env.completeBuy(t, call.ID, true)

	var result *ledger.PayoutResult
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		var err error
		result, err = env.ledger.Payout(txn, env.policy, testCouncil, []uint64{handle}, time.Now())
		return err
	}))
	assert.Equal(t, []uint64{handle}, result.Paid)
	assert.True(t, result.Remainder.Equal(decimal.NewFromInt(1)))
	env.view(t, func(txn *database.Txn) {
		remainder, err := env.ledger.PayoutRemainder(txn)
		require.NoError(t, err)
		assert.True(t, remainder.Equal(decimal.NewFromInt(1)))
	})
}

func TestPayoutWithoutTable(t *testing.T) {
	env := newTestEnv(t)
	handle := env.mint(t, "fono-root-1")
	err := env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.Payout(txn, env.policy, testArtist, []uint64{handle}, time.Now())
		return err
	})
	require.ErrorIs(t, err, ledger.ErrNoRevenueTable)
	err = env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.Payout(txn, env.policy, testArtist, []uint64{42}, time.Now())
		return err
	})
	require.ErrorIs(t, err, ledger.ErrHandleNotFound)
}

func TestBuyChecks(t *testing.T) {
	env := newTestEnv(t)
	env.mint(t, "fono-root-1")
	_, err := env.buy(t, "fono-root-1", decimal.NewFromInt(1))
	require.ErrorIs(t, err, ledger.ErrPriceNotSet)
	_, err = env.buy(t, "fono-root-2", decimal.NewFromInt(1))
	require.ErrorIs(t, err, ledger.ErrHandleNotFound)
	price := decimal.NewFromInt(100)
	require.NoError(t, env.createTable(
		t,
		testArtist,
		"fono-root-1",
		ledger.RevenueTable{"a.near": 10000},
		price,
	))
	for _, payment := range []decimal.Decimal{decimal.NewFromInt(99), decimal.NewFromInt(101)} {
		_, err = env.buy(t, "fono-root-1", payment)
		require.ErrorIs(t, err, ledger.ErrWrongPayment)
	}
	// Nothing was scheduled by the rejected purchases
	env.view(t, func(txn *database.Txn) {
		pending, err := env.orch.Pending(txn)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestFailedBuyRefundsBuyer(t *testing.T) {
	env := newTestEnv(t)
	handle := env.mint(t, "fono-root-1")
	price := decimal.NewFromInt(100)
	require.NoError(t, env.createTable(
		t,
		testArtist,
		"fono-root-1",
		ledger.RevenueTable{"a.near": 10000},
		price,
	))
	call, err := env.buy(t, "fono-root-1", price)
	require.NoError(t, err)
	outcome := env.completeBuy(t, call.ID, false)
	assert.True(t, outcome.Refunded)
	require.NotNil(t, outcome.Refund)
	assert.Equal(t, testBuyer, outcome.Refund.Receiver)
	assert.True(t, outcome.Refund.Deposit.Equal(price))
	env.view(t, func(txn *database.Txn) {
		record, err := env.ledger.IncomeRecord(txn, handle)
		require.NoError(t, err)
		assert.True(t, record.TotalIncome.IsZero())
		assert.True(t, record.CurrentBalance.IsZero())
		transfer, err := env.ledger.Transfer(txn, *outcome.Refund.TransferID)
		require.NoError(t, err)
		assert.Equal(t, models.TransferKindRefund, transfer.Kind)
	})
}

func TestFailedTransferResend(t *testing.T) {
	env := newTestEnv(t)
	var call extcall.Call
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		var err error
		call, err = env.ledger.SendTransfer(
			txn,
			ledger.TransferRequest{
				Kind:        models.TransferKindBond,
				Beneficiary: "gone.near",
				Amount:      decimal.NewFromInt(50),
			},
			time.Now(),
		)
		return err
	}))
	var failed ledger.FailedTransaction
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		var err error
		failed, err = env.ledger.FailTransfer(txn, *call.TransferID)
		return err
	}))
	assert.Equal(t, "gone.near", failed.Beneficiary)
	err := env.update(t, func(txn *database.Txn) error {
		return env.ledger.SettleTransfer(txn, *call.TransferID)
	})
	require.ErrorIs(t, err, ledger.ErrTransferNotPending)

	err = env.update(t, func(txn *database.Txn) error {
		_, err := env.ledger.ResendFailedTransaction(txn, failed.ID+1, "new.near", time.Now())
		return err
	})
	require.ErrorIs(t, err, ledger.ErrNoFailedTransaction)

	var resend extcall.Call
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		var err error
		resend, err = env.ledger.ResendFailedTransaction(txn, failed.ID, "new.near", time.Now())
		return err
	}))
	assert.Equal(t, "new.near", resend.Receiver)
	assert.True(t, resend.Amount.Equal(decimal.NewFromInt(50)))
	env.view(t, func(txn *database.Txn) {
		list, err := env.ledger.FailedTransactions(txn, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
		transfer, err := env.ledger.Transfer(txn, *resend.TransferID)
		require.NoError(t, err)
		assert.Equal(t, models.TransferKindResend, transfer.Kind)
	})
	require.NoError(t, env.update(t, func(txn *database.Txn) error {
		return env.ledger.SettleTransfer(txn, *resend.TransferID)
	}))
}

func TestSendTransferRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	testDefs := []struct {
		beneficiary string
		amount      decimal.Decimal
		err         error
	}{
		{"ok.near", decimal.Zero, ledger.ErrInvalidAmount},
		{"ok.near", decimal.NewFromInt(-1), ledger.ErrInvalidAmount},
		{"Not Valid", decimal.NewFromInt(1), ledger.ErrInvalidAccountID},
	}
	for _, testDef := range testDefs {
		err := env.update(t, func(txn *database.Txn) error {
			_, err := env.ledger.SendTransfer(
				txn,
				ledger.TransferRequest{
					Kind:        models.TransferKindPayout,
					Beneficiary: testDef.beneficiary,
					Amount:      testDef.amount,
				},
				time.Now(),
			)
			return err
		})
		assert.True(t, errors.Is(err, testDef.err), "unexpected error: %v", err)
	}
}
