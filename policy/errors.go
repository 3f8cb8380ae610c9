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
	"errors"
)

var (
	ErrPermissionDenied = errors.New("ERR_PERMISSION_DENIED")
	ErrInvalidPolicy    = errors.New("ERR_INVALID_POLICY")
	ErrRoleNotFound     = errors.New("ERR_ROLE_NOT_FOUND")
	ErrRoleWrongKind    = errors.New("ERR_ROLE_WRONG_KIND")
	ErrMissingRole      = errors.New("ERR_MISSING_ROLE")
)
