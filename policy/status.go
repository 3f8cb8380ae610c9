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

package policy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action is something a caller can do to a proposal
type Action uint8

const (
	ActionAddProposal    Action = 0
	ActionRemoveProposal Action = 1
	ActionVoteApprove    Action = 2
	ActionVoteReject     Action = 3
	ActionVoteRemove     Action = 4
	ActionFinalize       Action = 5
	ActionMoveToHub      Action = 6
)

var actionNames = map[Action]string{
	ActionAddProposal:    "AddProposal",
	ActionRemoveProposal: "RemoveProposal",
	ActionVoteApprove:    "VoteApprove",
	ActionVoteReject:     "VoteReject",
	ActionVoteRemove:     "VoteRemove",
	ActionFinalize:       "Finalize",
	ActionMoveToHub:      "MoveToHub",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

func (a Action) MarshalText() ([]byte, error) {
	if _, ok := actionNames[a]; !ok {
		return nil, fmt.Errorf("unknown action: %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(data []byte) error {
	tmp, err := ParseAction(string(data))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

// ParseAction returns the action with the given name
func ParseAction(name string) (Action, error) {
	for action, actionName := range actionNames {
		if actionName == name {
			return action, nil
		}
	}
	return 0, fmt.Errorf("unknown action: %s", name)
}

// Vote returns the vote cast by a voting action
func (a Action) Vote() (Vote, bool) {
	switch a {
	case ActionVoteApprove:
		return VoteApprove, true
	case ActionVoteReject:
		return VoteReject, true
	case ActionVoteRemove:
		return VoteRemove, true
	default:
		return 0, false
	}
}

// Vote is one of the three choices a voter can make. It indexes vote counts.
type Vote uint8

const (
	VoteApprove Vote = 0
	VoteReject  Vote = 1
	VoteRemove  Vote = 2
)

var voteNames = map[Vote]string{
	VoteApprove: "Approve",
	VoteReject:  "Reject",
	VoteRemove:  "Remove",
}

func (v Vote) String() string {
	if name, ok := voteNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Vote(%d)", uint8(v))
}

func (v Vote) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Vote) UnmarshalText(data []byte) error {
	for vote, name := range voteNames {
		if name == string(data) {
			*v = vote
			return nil
		}
	}
	return fmt.Errorf("unknown vote: %s", string(data))
}

// Status is the lifecycle state of a proposal
type Status uint8

const (
	StatusInProgress Status = 0
	StatusApproved   Status = 1
	StatusRejected   Status = 2
	StatusRemoved    Status = 3
	StatusExpired    Status = 4
	StatusMoved      Status = 5
	StatusFailed     Status = 6
)

var statusNames = map[Status]string{
	StatusInProgress: "InProgress",
	StatusApproved:   "Approved",
	StatusRejected:   "Rejected",
	StatusRemoved:    "Removed",
	StatusExpired:    "Expired",
	StatusMoved:      "Moved",
	StatusFailed:     "Failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(data []byte) error {
	for status, name := range statusNames {
		if name == string(data) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status: %s", string(data))
}

// VoteCounts holds approve, reject and remove weight for one role
type VoteCounts [3]decimal.Decimal

// Tally is the voting state of a proposal as seen by the policy
type Tally struct {
	Label          string
	Status         Status
	SubmissionTime time.Time
	VoteCounts     map[string]VoteCounts
}

// ProposalStatus resolves the votes of the given roles. Roles are checked in
// order and the first one whose approve, reject or remove weight reaches its
// threshold decides. When no role decides, a proposal past its voting period
// is Expired, otherwise it keeps its current status.
func (p *Policy) ProposalStatus(
	t Tally,
	roles []string,
	totalSupply decimal.Decimal,
	now time.Time,
) Status {
	for _, roleName := range roles {
		role, ok := p.Role(roleName)
		if !ok {
			continue
		}
		vp := p.VotePolicyFor(role, t.Label)
		var totalWeight decimal.Decimal
		switch role.Kind.Type {
		case RoleKindGroup:
			// Token weighted votes of a group count against the supply
			if vp.WeightKind == TokenWeight {
				totalWeight = totalSupply
			} else {
				totalWeight = role.Kind.groupSize()
			}
		case RoleKindMember:
			totalWeight = totalSupply
		default:
			continue
		}
		threshold := decimal.Max(vp.Quorum, vp.Threshold.ToWeight(totalWeight))
		counts, ok := t.VoteCounts[roleName]
		if !ok {
			continue
		}
		switch {
		case counts[VoteApprove].GreaterThanOrEqual(threshold):
			return StatusApproved
		case counts[VoteReject].GreaterThanOrEqual(threshold):
			return StatusRejected
		case counts[VoteRemove].GreaterThanOrEqual(threshold):
			return StatusRemoved
		}
	}
	if now.After(t.SubmissionTime.Add(p.ProposalPeriod)) {
		return StatusExpired
	}
	return t.Status
}
