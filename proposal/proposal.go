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
	"fmt"
	"time"

	"github.com/blinklabs-io/fonodao/policy"
	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// Proposal format versions
const (
	// ProposalVersionDefault is the legacy format without a stored bond
	ProposalVersionDefault uint8 = 0
	ProposalVersionCurrent uint8 = 1
)

// Input is what a caller submits to create a proposal
type Input struct {
	Description string       `json:"description"`
	Kind        ProposalKind `json:"kind"`
}

// Proposal is a stored proposal
type Proposal struct {
	_              struct{}                     `cbor:",toarray"`
	Proposer       string                       `json:"proposer"`
	Description    string                       `json:"description"`
	Kind           ProposalKind                 `json:"kind"`
	Status         policy.Status                `json:"status"`
	VoteCounts     map[string]policy.VoteCounts `json:"vote_counts"`
	Votes          map[string]policy.Vote       `json:"votes"`
	SubmissionTime uint64                       `json:"submission_time"`
	// Bond is the deposit attached at submission, returned on resolution
	Bond decimal.Decimal `json:"bond"`
	// AwaitingCallback is set while an approved proposal's execution waits
	// for an external result
	AwaitingCallback bool `json:"awaiting_callback"`
}

// legacyProposal is the format stored before bonds were tracked per proposal
type legacyProposal struct {
	_              struct{} `cbor:",toarray"`
	Proposer       string
	Description    string
	Kind           ProposalKind
	Status         policy.Status
	VoteCounts     map[string]policy.VoteCounts
	Votes          map[string]policy.Vote
	SubmissionTime uint64
}

// Output is a proposal along with its id
type Output struct {
	ID uint64 `json:"id"`
	*Proposal
}

func (p *Proposal) submittedAt() time.Time {
	return time.Unix(0, int64(p.SubmissionTime)) // #nosec G115
}

func (p *Proposal) tally() policy.Tally {
	return policy.Tally{
		Label:          p.Kind.Label(),
		Status:         p.Status,
		SubmissionTime: p.submittedAt(),
		VoteCounts:     p.VoteCounts,
	}
}

// updateVotes records the vote of user in every role that allowed it. Token
// weighted roles count the user's weight, others count one per member.
func (p *Proposal) updateVotes(
	pol *policy.Policy,
	user policy.UserInfo,
	roles []string,
	vote policy.Vote,
) error {
	if _, ok := p.Votes[user.AccountID]; ok {
		return ErrAlreadyVoted
	}
	label := p.Kind.Label()
	for _, role := range roles {
		amount := decimal.NewFromInt(1)
		if pol.IsTokenWeighted(role, label) {
			amount = user.Amount
		}
		counts := p.VoteCounts[role]
		counts[vote] = counts[vote].Add(amount)
		p.VoteCounts[role] = counts
	}
	p.Votes[user.AccountID] = vote
	return nil
}

type versionedProposal struct {
	_       struct{} `cbor:",toarray"`
	Version uint8
	Body    cbor.RawMessage
}

// Encode returns the stored form of p
func Encode(p *Proposal) ([]byte, error) {
	body, err := cbor.Marshal(p)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(
		versionedProposal{
			Version: ProposalVersionCurrent,
			Body:    body,
		},
	)
}

// Decode parses a stored proposal of any version. Legacy proposals are
// upgraded with legacyBond as their bond.
func Decode(data []byte, legacyBond decimal.Decimal) (*Proposal, error) {
	var tmp versionedProposal
	if err := cbor.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	var ret Proposal
	switch tmp.Version {
	case ProposalVersionDefault:
		var legacy legacyProposal
		if err := cbor.Unmarshal(tmp.Body, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy proposal: %w", err)
		}
		ret = upgradeLegacy(legacy, legacyBond)
	case ProposalVersionCurrent:
		if err := cbor.Unmarshal(tmp.Body, &ret); err != nil {
			return nil, fmt.Errorf("decode proposal: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode proposal: unknown version %d", tmp.Version)
	}
	if ret.VoteCounts == nil {
		ret.VoteCounts = map[string]policy.VoteCounts{}
	}
	if ret.Votes == nil {
		ret.Votes = map[string]policy.Vote{}
	}
	return &ret, nil
}

func upgradeLegacy(legacy legacyProposal, bond decimal.Decimal) Proposal {
	return Proposal{
		Proposer:       legacy.Proposer,
		Description:    legacy.Description,
		Kind:           legacy.Kind,
		Status:         legacy.Status,
		VoteCounts:     legacy.VoteCounts,
		Votes:          legacy.Votes,
		SubmissionTime: legacy.SubmissionTime,
		Bond:           bond,
	}
}
