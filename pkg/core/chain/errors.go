// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

package chain

import "github.com/pkg/errors"

// Sentinel errors describing why a mutation was rejected. The public API
// (AddTransaction, AddBlock, ReplaceChain) still returns a plain bool per
// the spec; these are logged internally with causal context via
// github.com/pkg/errors rather than surfaced to callers.
var (
	ErrDuplicateTransaction = errors.New("chain: transaction already known")
	ErrInsufficientBalance  = errors.New("chain: insufficient balance at origem")
	ErrInvalidBlock         = errors.New("chain: block fails validity rules")
	ErrInvalidChain         = errors.New("chain: candidate chain fails validity rules")
	ErrShorterChain         = errors.New("chain: candidate chain is not strictly longer")
)
