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

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/blinklabs-io/fonodao/policy"
)

// Draft states
const (
	DraftStateDraft                  = "draft"
	DraftStatePendingExternalConfirm = "pending_external_confirm"
)

// mint call placeholders for fields the minting contract requires but this
// DAO does not manage
const (
	mintInstanceNonce = 999_999_999
	mintGeneration    = 999_999_999
)

// DraftInput carries the fields of a draft as submitted by an artist. Every
// content reference is optional, but a reference without its hash is rejected.
type DraftInput struct {
	Contract         string  `json:"contract"`
	Title            *string `json:"title,omitempty"`
	Desc             *string `json:"desc,omitempty"`
	ImageCid         *string `json:"image_cid,omitempty"`
	ImageHash        *string `json:"image_hash,omitempty"`
	MusicFolderCid   *string `json:"music_folder_cid,omitempty"`
	MusicFolderHash  *string `json:"music_folder_hash,omitempty"`
	AnimationUrl     *string `json:"animation_url,omitempty"`
	AnimationUrlHash *string `json:"animation_url_hash,omitempty"`
	MetaJsonCid      *string `json:"meta_json_cid,omitempty"`
	MetaJsonHash     *string `json:"meta_json_hash,omitempty"`
}

// Validate checks that every supplied content reference has its hash
func (d DraftInput) Validate() error {
	if d.Contract == "" {
		return &ValidationError{
			Field:   "contract",
			Message: "contract is required",
		}
	}
	checks := []struct {
		field   string
		value   *string
		hash    *string
		message string
	}{
		{"image_cid", d.ImageCid, d.ImageHash, "hash has to exist if image exists"},
		{"music_folder_cid", d.MusicFolderCid, d.MusicFolderHash, "hash has to exist if music folder exists"},
		{"animation_url", d.AnimationUrl, d.AnimationUrlHash, "hash has to exist if animation url exists"},
		{"meta_json_cid", d.MetaJsonCid, d.MetaJsonHash, "hash has to exist if meta exists"},
	}
	for _, check := range checks {
		if check.value != nil && check.hash == nil {
			return &ValidationError{
				Field:   check.field,
				Message: check.message,
			}
		}
	}
	return nil
}

// Draft is an artist's in-progress asset description
type Draft struct {
	ID               uint64    `json:"id"`
	Initiated        time.Time `json:"initiated"`
	Artist           string    `json:"artist"`
	Contract         string    `json:"contract"`
	Scheduled        *uint64   `json:"scheduled"`
	Title            *string   `json:"title"`
	Desc             *string   `json:"desc"`
	Image            *string   `json:"image"`
	ImageHash        *string   `json:"image_hash"`
	Music            *string   `json:"music"`
	MusicHash        *string   `json:"music_hash"`
	AnimationUrl     *string   `json:"animation_url"`
	AnimationUrlHash *string   `json:"animation_url_hash"`
	Meta             *string   `json:"meta"`
	MetaHash         *string   `json:"meta_hash"`
	State            string    `json:"state"`
	MintCallID       string    `json:"mint_call_id,omitempty"`
}

func draftFromModel(tmpDraft *models.Draft) Draft {
	ret := Draft{
		ID:               tmpDraft.ID,
		Initiated:        time.Unix(0, tmpDraft.Initiated).UTC(),
		Artist:           tmpDraft.Artist,
		Contract:         tmpDraft.Contract,
		Scheduled:        tmpDraft.Scheduled,
		Title:            tmpDraft.Title,
		Desc:             tmpDraft.Desc,
		Image:            tmpDraft.Image,
		ImageHash:        tmpDraft.ImageHash,
		Music:            tmpDraft.Music,
		MusicHash:        tmpDraft.MusicHash,
		AnimationUrl:     tmpDraft.AnimationUrl,
		AnimationUrlHash: tmpDraft.AnimationUrlHash,
		Meta:             tmpDraft.Meta,
		MetaHash:         tmpDraft.MetaHash,
		State:            DraftStateDraft,
		MintCallID:       tmpDraft.MintCallId,
	}
	if tmpDraft.State == models.DraftStatePendingExternalConfirm {
		ret.State = DraftStatePendingExternalConfirm
	}
	return ret
}

func applyDraftInput(tmpDraft *models.Draft, input DraftInput) {
	tmpDraft.Contract = input.Contract
	tmpDraft.Title = input.Title
	tmpDraft.Desc = input.Desc
	tmpDraft.Image = input.ImageCid
	tmpDraft.ImageHash = input.ImageHash
	tmpDraft.Music = input.MusicFolderCid
	tmpDraft.MusicHash = input.MusicFolderHash
	tmpDraft.AnimationUrl = input.AnimationUrl
	tmpDraft.AnimationUrlHash = input.AnimationUrlHash
	tmpDraft.Meta = input.MetaJsonCid
	tmpDraft.MetaHash = input.MetaJsonHash
}

// missingDraftFields returns the names of the fields a mint requires that
// the draft lacks
func missingDraftFields(tmpDraft *models.Draft) []string {
	var ret []string
	fields := []struct {
		name  string
		value *string
	}{
		{"title", tmpDraft.Title},
		{"desc", tmpDraft.Desc},
		{"image", tmpDraft.Image},
		{"image_hash", tmpDraft.ImageHash},
		{"music", tmpDraft.Music},
		{"music_hash", tmpDraft.MusicHash},
		{"animation_url", tmpDraft.AnimationUrl},
		{"animation_url_hash", tmpDraft.AnimationUrlHash},
		{"meta", tmpDraft.Meta},
		{"meta_hash", tmpDraft.MetaHash},
	}
	for _, field := range fields {
		if field.value == nil {
			ret = append(ret, field.name)
		}
	}
	return ret
}

// CheckMintRole verifies that account belongs to the minting role of contract
func CheckMintRole(pol *policy.Policy, contract string, account string) error {
	role := policy.MasterRole(contract)
	found, member := pol.IsRoleMember(role, account)
	if !found {
		return fmt.Errorf("%w: %s", ErrMintRoleNotFound, role)
	}
	if !member {
		return fmt.Errorf("%w: %s", ErrNotMintRoleMember, contract)
	}
	return nil
}

// Prepare stores a new draft for artist and returns its id
func (l *Ledger) Prepare(
	txn *database.Txn,
	pol *policy.Policy,
	artist string,
	input DraftInput,
	now time.Time,
) (uint64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}
	if err := CheckMintRole(pol, input.Contract, artist); err != nil {
		return 0, err
	}
	id, err := l.store().NextCounter(draftNonceCounter, txn.Metadata())
	if err != nil {
		return 0, fmt.Errorf("allocate draft id: %w", err)
	}
	tmpDraft := &models.Draft{
		ID:        id,
		Initiated: now.UnixNano(),
		Artist:    artist,
		State:     models.DraftStateDraft,
	}
	applyDraftInput(tmpDraft, input)
	if err := l.store().SetDraft(tmpDraft, txn.Metadata()); err != nil {
		return 0, err
	}
	l.metrics.draftsPrepared.Inc()
	l.logger().Debug(
		"prepared draft",
		"component", "ledger",
		"draft_id", id,
		"artist", artist,
		"contract", input.Contract,
	)
	return id, nil
}

// Update replaces the content of a draft. Only the original artist may
// update it, and never while a mint is in progress.
func (l *Ledger) Update(
	txn *database.Txn,
	pol *policy.Policy,
	artist string,
	id uint64,
	input DraftInput,
) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if err := CheckMintRole(pol, input.Contract, artist); err != nil {
		return err
	}
	tmpDraft, err := l.store().GetDraft(id, txn.Metadata())
	if err != nil {
		return err
	}
	if tmpDraft.Artist != artist {
		return ErrNotDraftArtist
	}
	if tmpDraft.State == models.DraftStatePendingExternalConfirm {
		return ErrDraftPendingMint
	}
	applyDraftInput(tmpDraft, input)
	return l.store().SetDraft(tmpDraft, txn.Metadata())
}

type mintArgs struct {
	ReceiverID string       `json:"receiver_id"`
	Metadata   mintMetadata `json:"metadata"`
}

type mintMetadata struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Media         string  `json:"media"`
	MediaHash     string  `json:"media_hash"`
	Copies        *uint64 `json:"copies"`
	IssuedAt      *uint64 `json:"issued_at"`
	ExpiresAt     *uint64 `json:"expires_at"`
	StartsAt      *uint64 `json:"starts_at"`
	UpdatedAt     *uint64 `json:"updated_at"`
	Extra         string  `json:"extra"`
	Reference     string  `json:"reference"`
	ReferenceHash string  `json:"reference_hash"`
}

type mintExtra struct {
	MusicCid         string  `json:"music_cid"`
	MusicHash        string  `json:"music_hash"`
	AnimationUrl     string  `json:"animation_url"`
	AnimationUrlHash string  `json:"animation_url_hash"`
	Parent           *string `json:"parent"`
	NextBuyable      *string `json:"next_buyable"`
	InstanceNonce    uint64  `json:"instance_nonce"`
	Generation       uint64  `json:"generation"`
}

func buildMintArgs(tmpDraft *models.Draft) ([]byte, error) {
	extra, err := json.Marshal(
		mintExtra{
			MusicCid:         *tmpDraft.Music,
			MusicHash:        *tmpDraft.MusicHash,
			AnimationUrl:     *tmpDraft.AnimationUrl,
			AnimationUrlHash: *tmpDraft.AnimationUrlHash,
			InstanceNonce:    mintInstanceNonce,
			Generation:       mintGeneration,
		},
	)
	if err != nil {
		return nil, err
	}
	return json.Marshal(
		mintArgs{
			ReceiverID: tmpDraft.Artist,
			Metadata: mintMetadata{
				Title:         *tmpDraft.Title,
				Description:   *tmpDraft.Desc,
				Media:         *tmpDraft.Image,
				MediaHash:     *tmpDraft.ImageHash,
				Extra:         string(extra),
				Reference:     *tmpDraft.Meta,
				ReferenceHash: *tmpDraft.MetaHash,
			},
		},
	)
}

// BeginMint schedules the mint call for a complete draft and marks the draft
// as awaiting confirmation. The draft is kept until the mint is committed.
func (l *Ledger) BeginMint(
	txn *database.Txn,
	pol *policy.Policy,
	caller string,
	id uint64,
	proposalID *uint64,
	now time.Time,
) (extcall.Call, error) {
	tmpDraft, err := l.store().GetDraft(id, txn.Metadata())
	if err != nil {
		return extcall.Call{}, err
	}
	if tmpDraft.State == models.DraftStatePendingExternalConfirm {
		return extcall.Call{}, ErrDraftPendingMint
	}
	if err := CheckMintRole(pol, tmpDraft.Contract, caller); err != nil {
		return extcall.Call{}, err
	}
	if tmpDraft.Artist != caller {
		return extcall.Call{}, ErrNotDraftArtist
	}
	if missing := missingDraftFields(tmpDraft); len(missing) > 0 {
		return extcall.Call{}, fmt.Errorf(
			"%w: missing %s",
			ErrDraftIncomplete,
			strings.Join(missing, ", "),
		)
	}
	args, err := buildMintArgs(tmpDraft)
	if err != nil {
		return extcall.Call{}, fmt.Errorf("encode mint args: %w", err)
	}
	draftID := tmpDraft.ID
	call, err := l.config.Orchestrator.Schedule(
		txn,
		extcall.Call{
			Purpose:    extcall.PurposeMint,
			Receiver:   tmpDraft.Contract,
			Method:     extcall.MintMethod,
			Args:       args,
			Deposit:    extcall.MintDeposit,
			Gas:        extcall.MintGas,
			ProposalID: proposalID,
			DraftID:    &draftID,
			Owner:      tmpDraft.Artist,
		},
		now,
	)
	if err != nil {
		return extcall.Call{}, err
	}
	tmpDraft.State = models.DraftStatePendingExternalConfirm
	tmpDraft.MintCallId = call.ID
	if err := l.store().SetDraft(tmpDraft, txn.Metadata()); err != nil {
		return extcall.Call{}, err
	}
	l.metrics.mintsStarted.Inc()
	l.logger().Info(
		"mint started",
		"component", "ledger",
		"draft_id", id,
		"contract", tmpDraft.Contract,
		"call_id", call.ID,
	)
	return call, nil
}

// FailMint returns a draft whose mint failed to the editable state
func (l *Ledger) FailMint(txn *database.Txn, draftID uint64) error {
	tmpDraft, err := l.store().GetDraft(draftID, txn.Metadata())
	if err != nil {
		if errors.Is(err, models.ErrDraftNotFound) {
			// Nothing to restore
			l.logger().Warn(
				"failed mint references a missing draft",
				"component", "ledger",
				"draft_id", draftID,
			)
			return nil
		}
		return err
	}
	if tmpDraft.State != models.DraftStatePendingExternalConfirm {
		return ErrDraftNotPendingMint
	}
	tmpDraft.State = models.DraftStateDraft
	tmpDraft.MintCallId = ""
	if err := l.store().SetDraft(tmpDraft, txn.Metadata()); err != nil {
		return err
	}
	l.metrics.mintsFailed.Inc()
	l.logger().Warn(
		"mint failed, draft restored",
		"component", "ledger",
		"draft_id", draftID,
	)
	return nil
}
