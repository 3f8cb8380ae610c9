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
	"encoding/json"
	"testing"

	"github.com/blinklabs-io/fonodao/policy"
	"github.com/blinklabs-io/fonodao/proposal"
	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalKindJSON(t *testing.T) {
	var input proposal.Input
	require.NoError(t, json.Unmarshal(
		[]byte(`{
			"description": "pay bob",
			"kind": {
				"label": "transfer",
				"params": {"token_id": "", "receiver_id": "bob.near", "amount": "1000"}
			}
		}`),
		&input,
	))
	transfer, ok := input.Kind.Kind.(proposal.Transfer)
	require.True(t, ok, "unexpected kind %T", input.Kind.Kind)
	assert.Equal(t, "bob.near", transfer.ReceiverID)
	assert.True(t, decimal.NewFromInt(1000).Equal(transfer.Amount))
	assert.Nil(t, transfer.Msg)

	data, err := json.Marshal(input.Kind)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"label":"transfer","params":{"token_id":"","receiver_id":"bob.near","amount":"1000"}}`,
		string(data),
	)
}

func TestProposalKindJSONWithoutParams(t *testing.T) {
	var kind proposal.ProposalKind
	require.NoError(t, json.Unmarshal([]byte(`{"label":"vote"}`), &kind))
	assert.Equal(t, proposal.SignalVote{}, kind.Kind)
	assert.Equal(t, proposal.LabelVote, kind.Label())
}

func TestProposalKindUnknownLabel(t *testing.T) {
	var kind proposal.ProposalKind
	err := json.Unmarshal([]byte(`{"label":"bounty_done","params":{}}`), &kind)
	assert.ErrorIs(t, err, proposal.ErrUnknownKind)

	_, err = json.Marshal(proposal.ProposalKind{})
	assert.Error(t, err)
}

func TestLabelsHaveDecoders(t *testing.T) {
	for _, label := range proposal.Labels() {
		var kind proposal.ProposalKind
		data := []byte(`{"label":"` + label + `"}`)
		require.NoError(t, json.Unmarshal(data, &kind), "label %s", label)
		assert.Equal(t, label, kind.Label())
	}
}

func TestEncodeDecode(t *testing.T) {
	p := &proposal.Proposal{
		Proposer:    "alice.near",
		Description: "add bob",
		Kind: proposal.ProposalKind{
			Kind: proposal.AddMemberToRole{MemberID: "bob.near", Role: policy.CouncilRole},
		},
		Status: policy.StatusInProgress,
		VoteCounts: map[string]policy.VoteCounts{
			policy.CouncilRole: {decimal.NewFromInt(1), decimal.Zero, decimal.Zero},
		},
		Votes:          map[string]policy.Vote{"alice.near": policy.VoteApprove},
		SubmissionTime: 1700000000000000000,
		Bond:           decimal.NewFromInt(7),
	}
	data, err := proposal.Encode(p)
	require.NoError(t, err)
	got, err := proposal.Decode(data, decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.Equal(t, p.Kind, got.Kind)
	assert.True(t, p.Bond.Equal(got.Bond))
	assert.Equal(t, p.Votes, got.Votes)
	assert.True(
		t,
		decimal.NewFromInt(1).Equal(got.VoteCounts[policy.CouncilRole][policy.VoteApprove]),
	)
}

// legacyRecord mirrors proposals written before bonds were stored
type legacyRecord struct {
	_              struct{} `cbor:",toarray"`
	Proposer       string
	Description    string
	Kind           proposal.ProposalKind
	Status         policy.Status
	VoteCounts     map[string]policy.VoteCounts
	Votes          map[string]policy.Vote
	SubmissionTime uint64
}

type legacyEnvelope struct {
	_       struct{} `cbor:",toarray"`
	Version uint8
	Body    cbor.RawMessage
}

func TestDecodeLegacyProposal(t *testing.T) {
	body, err := cbor.Marshal(legacyRecord{
		Proposer:       "alice.near",
		Description:    "signal",
		Kind:           proposal.ProposalKind{Kind: proposal.SignalVote{}},
		Status:         policy.StatusInProgress,
		SubmissionTime: 1,
	})
	require.NoError(t, err)
	data, err := cbor.Marshal(legacyEnvelope{
		Version: proposal.ProposalVersionDefault,
		Body:    body,
	})
	require.NoError(t, err)

	got, err := proposal.Decode(data, decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.Equal(t, "alice.near", got.Proposer)
	assert.Equal(t, proposal.LabelVote, got.Kind.Label())
	assert.True(t, decimal.NewFromInt(3).Equal(got.Bond))
	assert.NotNil(t, got.Votes)
	assert.NotNil(t, got.VoteCounts)
	assert.False(t, got.AwaitingCallback)
}

func TestDecodeUnknownVersion(t *testing.T) {
	data, err := cbor.Marshal(legacyEnvelope{Version: 9, Body: []byte{0xa0}})
	require.NoError(t, err)
	_, err = proposal.Decode(data, decimal.Zero)
	assert.Error(t, err)
}
