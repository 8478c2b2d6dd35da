// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package transaction implements the value-transfer record that makes up
// a block's payload: an immutable, id-addressed money movement between two
// plaintext addresses.
package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/canonicaljson"
)

// Genesis and Coinbase are the two reserved source addresses that bypass
// balance checks on admission. Genesis seeds a chain with no prior supply;
// Coinbase mints value out of thin air, as a faucet would.
const (
	Genesis  = "genesis"
	Coinbase = "coinbase"
)

// ErrInvalidTransaction is returned by New when valor is not positive or
// either address is empty.
var ErrInvalidTransaction = errors.New("transaction: invalid value or address")

// Transaction is a single plaintext value transfer. It has no signature:
// the design trades authentication for simplicity, consistent with the
// teaching scope of this ledger.
type Transaction struct {
	ID        string  `json:"id"`
	Origem    string  `json:"origem"`
	Destino   string  `json:"destino"`
	Valor     float64 `json:"valor"`
	Timestamp float64 `json:"timestamp"`
}

// New builds a Transaction, assigning it a fresh UUIDv4 id and the current
// time. It fails if valor is not strictly positive or either address is
// empty.
func New(origem, destino string, valor float64) (*Transaction, error) {
	if valor <= 0 {
		return nil, errors.Wrap(ErrInvalidTransaction, "valor must be positive")
	}

	if origem == "" || destino == "" {
		return nil, errors.Wrap(ErrInvalidTransaction, "origem and destino are required")
	}

	return &Transaction{
		ID:        uuid.NewString(),
		Origem:    origem,
		Destino:   destino,
		Valor:     valor,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}, nil
}

// IsExempt reports whether origem is one of the reserved addresses that
// are allowed to debit without a balance check.
func (t *Transaction) IsExempt() bool {
	return t.Origem == Genesis || t.Origem == Coinbase
}

// Equal compares two transactions by id, matching the source's
// id-only equality and hashing semantics.
func (t *Transaction) Equal(other *Transaction) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID == other.ID
}

// CanonicalMap returns the sorted-key JSON value this transaction
// contributes to a block's hash. It is consumed by canonicaljson.Marshal,
// never emitted on its own.
func (t *Transaction) CanonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"id":        t.ID,
		"origem":    t.Origem,
		"destino":   t.Destino,
		"valor":     canonicaljson.Float(t.Valor),
		"timestamp": canonicaljson.Float(t.Timestamp),
	}
}
