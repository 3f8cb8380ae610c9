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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type PolicyVersion uint8

const (
	// PolicyVersionDefault is the legacy form that only lists the council
	PolicyVersionDefault PolicyVersion = 0
	PolicyVersionCurrent PolicyVersion = 1
)

// VersionedPolicy is the stored and submitted form of a policy. Legacy
// variants are upgraded when decoded and never used directly.
type VersionedPolicy struct {
	_       struct{} `cbor:",toarray"`
	Version PolicyVersion
	Council []AccountID
	Policy  *Policy
}

// Current wraps p as a current-version policy
func Current(p *Policy) VersionedPolicy {
	return VersionedPolicy{
		Version: PolicyVersionCurrent,
		Policy:  p,
	}
}

// Legacy returns a legacy policy naming only the council
func Legacy(council []AccountID) VersionedPolicy {
	return VersionedPolicy{
		Version: PolicyVersionDefault,
		Council: council,
	}
}

// IsCurrent reports whether v holds a full current-version policy
func (v VersionedPolicy) IsCurrent() bool {
	return v.Version == PolicyVersionCurrent && v.Policy != nil
}

// Upgrade returns the current-version policy that v represents
func (v VersionedPolicy) Upgrade() *Policy {
	if v.IsCurrent() {
		return v.Policy.Clone()
	}
	return DefaultPolicy(v.Council)
}

type versionedPolicyJson struct {
	Default *[]AccountID `json:"default,omitempty"`
	Current *Policy      `json:"current,omitempty"`
}

func (v VersionedPolicy) MarshalJSON() ([]byte, error) {
	tmp := versionedPolicyJson{}
	if v.IsCurrent() {
		tmp.Current = v.Policy
	} else {
		council := v.Council
		tmp.Default = &council
	}
	return json.Marshal(tmp)
}

func (v *VersionedPolicy) UnmarshalJSON(data []byte) error {
	var tmp versionedPolicyJson
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	switch {
	case tmp.Current != nil && tmp.Default != nil:
		return errors.New("policy must be either default or current, not both")
	case tmp.Current != nil:
		*v = Current(tmp.Current)
	case tmp.Default != nil:
		*v = Legacy(*tmp.Default)
	default:
		return errors.New("policy must be either default or current")
	}
	return nil
}

// Encode returns the stored form of p
func Encode(p *Policy) ([]byte, error) {
	return cbor.Marshal(Current(p))
}

// Decode parses a stored policy of any version and upgrades it
func Decode(data []byte) (*Policy, error) {
	var tmp VersionedPolicy
	if err := cbor.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	switch tmp.Version {
	case PolicyVersionDefault, PolicyVersionCurrent:
	default:
		return nil, fmt.Errorf("decode policy: unknown version %d", tmp.Version)
	}
	return tmp.Upgrade(), nil
}
