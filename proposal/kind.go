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
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/fonodao/ledger"
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// Proposal kind labels. Permissions and vote policies are keyed by label.
const (
	LabelConfig                        = "config"
	LabelPolicy                        = "policy"
	LabelAddMemberToRole               = "add_member_to_role"
	LabelRemoveMemberFromRole          = "remove_member_from_role"
	LabelFunctionCall                  = "call"
	LabelTransfer                      = "transfer"
	LabelVote                          = "vote"
	LabelPolicyAddOrUpdateRole         = "policy_add_or_update_role"
	LabelPolicyRemoveRole              = "policy_remove_role"
	LabelPolicyUpdateDefaultVotePolicy = "policy_update_default_vote_policy"
	LabelPolicyUpdateParameters        = "policy_update_parameters"
	LabelMintRoot                      = "mint_root"
	LabelPrepairNft                    = "prepair_nft"
	LabelUpdatePrepairedNft            = "update_prepaired_nft"
	LabelCreateRevenueTable            = "create_revenue_table"
	LabelAlterRevenueTable             = "alter_revenue_table"
	LabelPayoutRevenue                 = "payout_revenue"
	LabelResendFailedTransaction       = "resend_failed_transaction"
)

// Kind is the payload of a proposal: what happens when it is approved
type Kind interface {
	Label() string
}

// Config is the DAO's name, purpose and free-form metadata
type Config struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Metadata []byte `json:"metadata"`
}

// ChangeConfig replaces the DAO config
type ChangeConfig struct {
	Config Config `json:"config"`
}

// ChangePolicy replaces the whole policy. Only current-version policies are
// accepted.
type ChangePolicy struct {
	Policy policy.VersionedPolicy `json:"policy"`
}

type AddMemberToRole struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
}

type RemoveMemberFromRole struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
}

// ActionCall is a single method call of a FunctionCall proposal
type ActionCall struct {
	MethodName string          `json:"method_name"`
	Args       []byte          `json:"args"`
	Deposit    decimal.Decimal `json:"deposit"`
	Gas        uint64          `json:"gas"`
}

// FunctionCall calls methods on another account
type FunctionCall struct {
	ReceiverID string       `json:"receiver_id"`
	Actions    []ActionCall `json:"actions"`
}

// Transfer sends the base token (empty TokenID) or a fungible token
type Transfer struct {
	TokenID    string          `json:"token_id"`
	ReceiverID string          `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Msg        *string         `json:"msg,omitempty"`
}

// SignalVote has no effect when approved
type SignalVote struct{}

type ChangePolicyAddOrUpdateRole struct {
	Role policy.RolePermission `json:"role"`
}

type ChangePolicyRemoveRole struct {
	Role string `json:"role"`
}

type ChangePolicyUpdateDefaultVotePolicy struct {
	VotePolicy policy.VotePolicy `json:"vote_policy"`
}

type ChangePolicyUpdateParameters struct {
	Parameters policy.Parameters `json:"parameters"`
}

// MintRoot mints the draft with the given id
type MintRoot struct {
	ID uint64 `json:"id"`
}

// PrepairNft creates a draft
type PrepairNft struct {
	NftData ledger.DraftInput `json:"nft_data"`
}

// UpdatePrepairedNft replaces the content of a draft
type UpdatePrepairedNft struct {
	ID         uint64            `json:"id"`
	NewNftData ledger.DraftInput `json:"new_nft_data"`
}

type CreateRevenueTable struct {
	RootID      string              `json:"root_id"`
	Contract    string              `json:"contract"`
	UnsafeTable ledger.RevenueTable `json:"unsafe_table"`
	Price       decimal.Decimal     `json:"price"`
}

type AlterRevenueTable struct {
	TreeIndex   uint64              `json:"tree_index"`
	UnsafeTable ledger.RevenueTable `json:"unsafe_table"`
	Price       decimal.Decimal     `json:"price"`
}

type PayoutRevenue struct {
	TreeIndexList []uint64 `json:"tree_index_list"`
}

type ResendFailedTransaction struct {
	FailedID   uint64 `json:"failed_id"`
	NewAddress string `json:"new_address"`
}

func (ChangeConfig) Label() string                        { return LabelConfig }
func (ChangePolicy) Label() string                        { return LabelPolicy }
func (AddMemberToRole) Label() string                     { return LabelAddMemberToRole }
func (RemoveMemberFromRole) Label() string                { return LabelRemoveMemberFromRole }
func (FunctionCall) Label() string                        { return LabelFunctionCall }
func (Transfer) Label() string                            { return LabelTransfer }
func (SignalVote) Label() string                          { return LabelVote }
func (ChangePolicyAddOrUpdateRole) Label() string         { return LabelPolicyAddOrUpdateRole }
func (ChangePolicyRemoveRole) Label() string              { return LabelPolicyRemoveRole }
func (ChangePolicyUpdateDefaultVotePolicy) Label() string { return LabelPolicyUpdateDefaultVotePolicy }
func (ChangePolicyUpdateParameters) Label() string        { return LabelPolicyUpdateParameters }
func (MintRoot) Label() string                            { return LabelMintRoot }
func (PrepairNft) Label() string                          { return LabelPrepairNft }
func (UpdatePrepairedNft) Label() string                  { return LabelUpdatePrepairedNft }
func (CreateRevenueTable) Label() string                  { return LabelCreateRevenueTable }
func (AlterRevenueTable) Label() string                   { return LabelAlterRevenueTable }
func (PayoutRevenue) Label() string                       { return LabelPayoutRevenue }
func (ResendFailedTransaction) Label() string             { return LabelResendFailedTransaction }

// Validate rejects policy replacements that don't carry a current policy
func (k ChangePolicy) Validate() error {
	if !k.Policy.IsCurrent() {
		return policy.ErrInvalidPolicy
	}
	return nil
}

// Validate rejects a message on a base token transfer
func (k Transfer) Validate() error {
	if k.TokenID == "" && k.Msg != nil {
		return ErrBaseTokenNoMsg
	}
	if !k.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive: %s", k.Amount)
	}
	return nil
}

type kindDecoder func(decode func(any) error) (Kind, error)

func decodeKind[T Kind](decode func(any) error) (Kind, error) {
	var tmp T
	if err := decode(&tmp); err != nil {
		return nil, err
	}
	return tmp, nil
}

var kindDecoders = map[string]kindDecoder{
	LabelConfig:                        decodeKind[ChangeConfig],
	LabelPolicy:                        decodeKind[ChangePolicy],
	LabelAddMemberToRole:               decodeKind[AddMemberToRole],
	LabelRemoveMemberFromRole:          decodeKind[RemoveMemberFromRole],
	LabelFunctionCall:                  decodeKind[FunctionCall],
	LabelTransfer:                      decodeKind[Transfer],
	LabelVote:                          decodeKind[SignalVote],
	LabelPolicyAddOrUpdateRole:         decodeKind[ChangePolicyAddOrUpdateRole],
	LabelPolicyRemoveRole:              decodeKind[ChangePolicyRemoveRole],
	LabelPolicyUpdateDefaultVotePolicy: decodeKind[ChangePolicyUpdateDefaultVotePolicy],
	LabelPolicyUpdateParameters:        decodeKind[ChangePolicyUpdateParameters],
	LabelMintRoot:                      decodeKind[MintRoot],
	LabelPrepairNft:                    decodeKind[PrepairNft],
	LabelUpdatePrepairedNft:            decodeKind[UpdatePrepairedNft],
	LabelCreateRevenueTable:            decodeKind[CreateRevenueTable],
	LabelAlterRevenueTable:             decodeKind[AlterRevenueTable],
	LabelPayoutRevenue:                 decodeKind[PayoutRevenue],
	LabelResendFailedTransaction:       decodeKind[ResendFailedTransaction],
}

// Labels returns every known proposal kind label
func Labels() []string {
	ret := make([]string, 0, len(kindDecoders))
	for label := range kindDecoders {
		ret = append(ret, label)
	}
	return ret
}

// ProposalKind wraps a Kind for encoding. Both the JSON and CBOR forms carry
// the label alongside the kind's parameters.
type ProposalKind struct {
	Kind
}

type proposalKindJson struct {
	Label  string          `json:"label"`
	Params json.RawMessage `json:"params,omitempty"`
}

type proposalKindCbor struct {
	_      struct{} `cbor:",toarray"`
	Label  string
	Params cbor.RawMessage
}

func (k ProposalKind) MarshalJSON() ([]byte, error) {
	if k.Kind == nil {
		return nil, ErrUnknownKind
	}
	params, err := json.Marshal(k.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(
		proposalKindJson{
			Label:  k.Label(),
			Params: params,
		},
	)
}

func (k *ProposalKind) UnmarshalJSON(data []byte) error {
	var tmp proposalKindJson
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	decoder, ok := kindDecoders[tmp.Label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, tmp.Label)
	}
	params := []byte(tmp.Params)
	if len(params) == 0 {
		params = []byte("{}")
	}
	kind, err := decoder(func(v any) error {
		return json.Unmarshal(params, v)
	})
	if err != nil {
		return fmt.Errorf("decode %s params: %w", tmp.Label, err)
	}
	k.Kind = kind
	return nil
}

func (k ProposalKind) MarshalCBOR() ([]byte, error) {
	if k.Kind == nil {
		return nil, ErrUnknownKind
	}
	params, err := cbor.Marshal(k.Kind)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(
		proposalKindCbor{
			Label:  k.Label(),
			Params: params,
		},
	)
}

func (k *ProposalKind) UnmarshalCBOR(data []byte) error {
	var tmp proposalKindCbor
	if err := cbor.Unmarshal(data, &tmp); err != nil {
		return err
	}
	decoder, ok := kindDecoders[tmp.Label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, tmp.Label)
	}
	kind, err := decoder(func(v any) error {
		return cbor.Unmarshal(tmp.Params, v)
	})
	if err != nil {
		return fmt.Errorf("decode %s params: %w", tmp.Label, err)
	}
	k.Kind = kind
	return nil
}
