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
	"errors"
)

var (
	ErrNoProposal                 = errors.New("ERR_NO_PROPOSAL")
	ErrWrongAction                = errors.New("ERR_WRONG_ACTION")
	ErrProposalNotReadyForVote    = errors.New("ERR_PROPOSAL_NOT_READY_FOR_VOTE")
	ErrProposalNotInProgress      = errors.New("ERR_PROPOSAL_NOT_IN_PROGRESS")
	ErrProposalNotExpiredOrFailed = errors.New("ERR_PROPOSAL_NOT_EXPIRED_OR_FAILED")
	ErrAlreadyVoted               = errors.New("ERR_ALREADY_VOTED")
	ErrBaseTokenNoMsg             = errors.New("ERR_BASE_TOKEN_NO_MSG")
	ErrUnknownKind                = errors.New("ERR_UNKNOWN_PROPOSAL_KIND")
	ErrCallbackNotExpected        = errors.New("proposal is not awaiting a callback")
)
