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

// Package policy decides who may act on a proposal and how votes resolve
// into a proposal status.
package policy

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AccountID identifies an account in the host environment
type AccountID = string

const (
	// EveryoneRole is the name of the implicit role that matches every caller
	EveryoneRole = "all"
	// CouncilRole is the administrator role
	CouncilRole = "council"
	// MasterRolePrefix prefixes the name of the role allowed to mint on a contract
	MasterRolePrefix = "master_"

	DefaultProposalPeriod          = 7 * 24 * time.Hour
	DefaultBountyForgivenessPeriod = 24 * time.Hour
)

// DefaultBond is the default proposal and bounty bond, 1 NEAR in yocto
var DefaultBond = decimal.New(1, 24)

// MasterRole returns the name of the role whose members may mint on contract
func MasterRole(contract AccountID) string {
	return MasterRolePrefix + contract
}

// UserInfo describes a caller: their account and their delegated token weight
type UserInfo struct {
	AccountID AccountID
	Amount    decimal.Decimal
}

type RoleKindType uint8

const (
	RoleKindEveryone RoleKindType = 0
	RoleKindMember   RoleKindType = 1
	RoleKindGroup    RoleKindType = 2
)

// RoleKind is the membership rule of a role. Member roles match callers whose
// token weight is at least Threshold. Group roles match the listed accounts.
type RoleKind struct {
	_         struct{}        `cbor:",toarray"`
	Type      RoleKindType    `json:"type"`
	Threshold decimal.Decimal `json:"threshold"`
	Group     []AccountID     `json:"group,omitempty"`
}

func Everyone() RoleKind {
	return RoleKind{Type: RoleKindEveryone}
}

func Member(threshold decimal.Decimal) RoleKind {
	return RoleKind{Type: RoleKindMember, Threshold: threshold}
}

func Group(accounts ...AccountID) RoleKind {
	ret := RoleKind{Type: RoleKindGroup}
	for _, account := range accounts {
		ret.addMember(account)
	}
	return ret
}

// Match reports whether user belongs to the role
func (k RoleKind) Match(user UserInfo) bool {
	switch k.Type {
	case RoleKindEveryone:
		return true
	case RoleKindMember:
		return user.Amount.GreaterThanOrEqual(k.Threshold)
	case RoleKindGroup:
		_, found := slices.BinarySearch(k.Group, user.AccountID)
		return found
	default:
		return false
	}
}

// groupSize is the vote base of a group role
func (k RoleKind) groupSize() decimal.Decimal {
	return decimal.NewFromInt(int64(len(k.Group)))
}

func (k *RoleKind) addMember(account AccountID) {
	idx, found := slices.BinarySearch(k.Group, account)
	if !found {
		k.Group = slices.Insert(k.Group, idx, account)
	}
}

func (k *RoleKind) removeMember(account AccountID) {
	idx, found := slices.BinarySearch(k.Group, account)
	if found {
		k.Group = slices.Delete(k.Group, idx, idx+1)
	}
}

// clone copies the rule. Group members come back sorted and unique, as
// Match and the membership mutations rely on.
func (k RoleKind) clone() RoleKind {
	ret := k
	if k.Group != nil {
		ret.Group = slices.Clone(k.Group)
		slices.Sort(ret.Group)
		ret.Group = slices.Compact(ret.Group)
	}
	return ret
}

// RolePermission is a named role with its membership rule, its permissions
// and optional per-label vote policies
type RolePermission struct {
	_           struct{}              `cbor:",toarray"`
	Name        string                `json:"name"`
	Kind        RoleKind              `json:"kind"`
	Permissions []string              `json:"permissions"`
	VotePolicy  map[string]VotePolicy `json:"vote_policy"`
}

func (r RolePermission) clone() RolePermission {
	ret := r
	ret.Kind = r.Kind.clone()
	ret.Permissions = slices.Clone(r.Permissions)
	if r.VotePolicy != nil {
		ret.VotePolicy = make(map[string]VotePolicy, len(r.VotePolicy))
		for k, v := range r.VotePolicy {
			ret.VotePolicy[k] = v
		}
	}
	return ret
}

func (r RolePermission) hasPermission(perm string) bool {
	return slices.Contains(r.Permissions, perm)
}

type WeightKind uint8

const (
	// RoleWeight counts one vote per member
	RoleWeight WeightKind = 0
	// TokenWeight counts each vote with the voter's token weight
	TokenWeight WeightKind = 1
)

// WeightOrRatio is either a fixed weight or a fraction of the total weight
type WeightOrRatio struct {
	_           struct{}        `cbor:",toarray"`
	IsRatio     bool            `json:"is_ratio"`
	Weight      decimal.Decimal `json:"weight"`
	Numerator   uint64          `json:"numerator"`
	Denominator uint64          `json:"denominator"`
}

func Weight(w decimal.Decimal) WeightOrRatio {
	return WeightOrRatio{Weight: w}
}

func Ratio(numerator uint64, denominator uint64) WeightOrRatio {
	return WeightOrRatio{
		IsRatio:     true,
		Numerator:   numerator,
		Denominator: denominator,
	}
}

// ToWeight converts the threshold into an absolute weight against total. A
// ratio needs strictly more than the fraction, capped at the total.
func (w WeightOrRatio) ToWeight(total decimal.Decimal) decimal.Decimal {
	if !w.IsRatio {
		return w.Weight
	}
	if w.Denominator == 0 {
		return total
	}
	quo, _ := total.Mul(decimal.NewFromUint64(w.Numerator)).
		QuoRem(decimal.NewFromUint64(w.Denominator), 0)
	return decimal.Min(quo.Add(decimal.NewFromInt(1)), total)
}

// VotePolicy defines how votes for a proposal label resolve within a role
type VotePolicy struct {
	_          struct{}        `cbor:",toarray"`
	WeightKind WeightKind      `json:"weight_kind"`
	Quorum     decimal.Decimal `json:"quorum"`
	Threshold  WeightOrRatio   `json:"threshold"`
}

// DefaultVotePolicy is one vote per member, no quorum and a simple majority
func DefaultVotePolicy() VotePolicy {
	return VotePolicy{
		WeightKind: RoleWeight,
		Quorum:     decimal.Zero,
		Threshold:  Ratio(1, 2),
	}
}

// Parameters holds optional replacements for the policy's scalar settings
type Parameters struct {
	ProposalBond            *decimal.Decimal `json:"proposal_bond,omitempty"`
	ProposalPeriod          *time.Duration   `json:"proposal_period,omitempty"`
	BountyBond              *decimal.Decimal `json:"bounty_bond,omitempty"`
	BountyForgivenessPeriod *time.Duration   `json:"bounty_forgiveness_period,omitempty"`
}

// Policy is the ordered role list plus the default vote policy and bonds
type Policy struct {
	_                       struct{}         `cbor:",toarray"`
	Roles                   []RolePermission `json:"roles"`
	DefaultVotePolicy       VotePolicy       `json:"default_vote_policy"`
	ProposalBond            decimal.Decimal  `json:"proposal_bond"`
	ProposalPeriod          time.Duration    `json:"proposal_period"`
	BountyBond              decimal.Decimal  `json:"bounty_bond"`
	BountyForgivenessPeriod time.Duration    `json:"bounty_forgiveness_period"`
}

// DefaultPolicy returns the policy a DAO starts with: everyone may submit
// proposals and the council votes on them
func DefaultPolicy(council []AccountID) *Policy {
	return &Policy{
		Roles: []RolePermission{
			{
				Name:        EveryoneRole,
				Kind:        Everyone(),
				Permissions: []string{"*:AddProposal"},
				VotePolicy:  map[string]VotePolicy{},
			},
			{
				Name: CouncilRole,
				Kind: Group(council...),
				Permissions: []string{
					"*:AddProposal",
					"*:Finalize",
					"*:VoteApprove",
					"*:VoteReject",
					"*:VoteRemove",
				},
				VotePolicy: map[string]VotePolicy{},
			},
		},
		DefaultVotePolicy:       DefaultVotePolicy(),
		ProposalBond:            DefaultBond,
		ProposalPeriod:          DefaultProposalPeriod,
		BountyBond:              DefaultBond,
		BountyForgivenessPeriod: DefaultBountyForgivenessPeriod,
	}
}

// Clone returns a deep copy of the policy
func (p *Policy) Clone() *Policy {
	ret := *p
	ret.Roles = make([]RolePermission, 0, len(p.Roles))
	for _, role := range p.Roles {
		ret.Roles = append(ret.Roles, role.clone())
	}
	return &ret
}

// Role returns the named role
func (p *Policy) Role(name string) (*RolePermission, bool) {
	for idx := range p.Roles {
		if p.Roles[idx].Name == name {
			return &p.Roles[idx], true
		}
	}
	return nil, false
}

// RoleNames returns all role names in policy order
func (p *Policy) RoleNames() []string {
	ret := make([]string, 0, len(p.Roles))
	for _, role := range p.Roles {
		ret = append(ret, role.Name)
	}
	return ret
}

// VotePolicyFor returns the vote policy a role applies to a proposal label
func (p *Policy) VotePolicyFor(role *RolePermission, label string) VotePolicy {
	if vp, ok := role.VotePolicy[label]; ok {
		return vp
	}
	return p.DefaultVotePolicy
}

// IsTokenWeighted reports whether votes in role on label count token weight
func (p *Policy) IsTokenWeighted(role string, label string) bool {
	rp, ok := p.Role(role)
	if !ok {
		return false
	}
	return p.VotePolicyFor(rp, label).WeightKind == TokenWeight
}

// IsRoleMember reports whether the named role exists and whether account
// matches it. Token weight is not considered.
func (p *Policy) IsRoleMember(role string, account AccountID) (bool, bool) {
	rp, ok := p.Role(role)
	if !ok {
		return false, false
	}
	return true, rp.Kind.Match(UserInfo{AccountID: account})
}
