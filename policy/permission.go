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
	"slices"
)

// UserRoles returns the permissions of every role the user matches, keyed by role name
func (p *Policy) UserRoles(user UserInfo) map[string][]string {
	ret := make(map[string][]string)
	for _, role := range p.Roles {
		if role.Kind.Match(user) {
			ret[role.Name] = slices.Clone(role.Permissions)
		}
	}
	return ret
}

// CanExecute returns the roles, in policy order, that allow user to perform
// action on a proposal with the given label, and whether any role does.
// Permissions have the form "<label>:<action>" where either side may be "*".
func (p *Policy) CanExecute(
	user UserInfo,
	label string,
	action Action,
) ([]string, bool) {
	var ret []string
	for _, role := range p.Roles {
		if !role.Kind.Match(user) {
			continue
		}
		if role.hasPermission(fmt.Sprintf("%s:%s", label, action)) ||
			role.hasPermission(label+":*") ||
			role.hasPermission(fmt.Sprintf("*:%s", action)) ||
			role.hasPermission("*:*") {
			ret = append(ret, role.Name)
		}
	}
	return ret, len(ret) > 0
}

// AddMemberToRole adds account to a group role
func (p *Policy) AddMemberToRole(role string, account AccountID) error {
	rp, ok := p.Role(role)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}
	if rp.Kind.Type != RoleKindGroup {
		return fmt.Errorf("%w: %s", ErrRoleWrongKind, role)
	}
	rp.Kind.addMember(account)
	return nil
}

// RemoveMemberFromRole removes account from a group role. Removing from an
// unknown role does nothing.
func (p *Policy) RemoveMemberFromRole(role string, account AccountID) error {
	rp, ok := p.Role(role)
	if !ok {
		return nil
	}
	if rp.Kind.Type != RoleKindGroup {
		return fmt.Errorf("%w: %s", ErrRoleWrongKind, role)
	}
	rp.Kind.removeMember(account)
	return nil
}

// AddOrUpdateRole replaces the role with the same name or appends a new one
func (p *Policy) AddOrUpdateRole(role RolePermission) {
	role = role.clone()
	if role.Kind.Type == RoleKindGroup {
		// Keep the group sorted for lookups
		group := role.Kind.Group
		role.Kind.Group = nil
		for _, account := range group {
			role.Kind.addMember(account)
		}
	}
	if role.VotePolicy == nil {
		role.VotePolicy = map[string]VotePolicy{}
	}
	if existing, ok := p.Role(role.Name); ok {
		*existing = role
		return
	}
	p.Roles = append(p.Roles, role)
}

// RemoveRole removes the named role if present
func (p *Policy) RemoveRole(role string) {
	p.Roles = slices.DeleteFunc(p.Roles, func(r RolePermission) bool {
		return r.Name == role
	})
}

func (p *Policy) UpdateDefaultVotePolicy(vp VotePolicy) {
	p.DefaultVotePolicy = vp
}

// UpdateParameters applies every parameter that is set
func (p *Policy) UpdateParameters(params Parameters) {
	if params.ProposalBond != nil {
		p.ProposalBond = *params.ProposalBond
	}
	if params.ProposalPeriod != nil {
		p.ProposalPeriod = *params.ProposalPeriod
	}
	if params.BountyBond != nil {
		p.BountyBond = *params.BountyBond
	}
	if params.BountyForgivenessPeriod != nil {
		p.BountyForgivenessPeriod = *params.BountyForgivenessPeriod
	}
}
