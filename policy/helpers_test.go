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

package policy_test

import (
	"github.com/blinklabs-io/fonodao/policy"
	"github.com/fxamacker/cbor/v2"
)

// cborLegacy encodes a legacy policy the way older versions stored it
func cborLegacy(council []string) ([]byte, error) {
	return cbor.Marshal(policy.Legacy(council))
}
