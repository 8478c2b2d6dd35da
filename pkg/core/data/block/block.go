// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package block implements the proof-of-work-bearing batch of transactions
// that makes up one entry of the chain.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/canonicaljson"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/transaction"
)

// ZeroHash is the previous_hash of the genesis block: 64 hex zeros.
var ZeroHash = strings.Repeat("0", 64)

// Block is one entry of the chain. It is immutable once Hash is set; every
// constructor in this package returns a Block with Hash already populated.
type Block struct {
	Index        int                        `json:"index"`
	PreviousHash string                     `json:"previous_hash"`
	Transactions []*transaction.Transaction `json:"transactions"`
	Nonce        uint64                     `json:"nonce"`
	Timestamp    float64                    `json:"timestamp"`
	Hash         string                     `json:"hash"`
}

// CreateGenesis returns the canonical genesis block: index 0, an all-zero
// previous hash, no transactions, nonce 0, timestamp 0. Every conforming
// node must derive the identical hash from these fields, since chain
// comparisons and sync both start by checking chain[0].
func CreateGenesis() *Block {
	b := &Block{
		Index:        0,
		PreviousHash: ZeroHash,
		Transactions: []*transaction.Transaction{},
		Nonce:        0,
		Timestamp:    0,
	}
	b.Hash = b.CalculateHash()
	return b
}

// New builds a mining candidate: a block with the given header fields and
// an already-computed hash (callers searching for a valid nonce mutate
// Nonce/Timestamp and call CalculateHash again between attempts).
func New(index int, previousHash string, txs []*transaction.Transaction, nonce uint64, timestamp float64) *Block {
	b := &Block{
		Index:        index,
		PreviousHash: previousHash,
		Transactions: txs,
		Nonce:        nonce,
		Timestamp:    timestamp,
	}
	b.Hash = b.CalculateHash()
	return b
}

// CalculateHash recomputes the SHA-256 hex digest of the block's canonical
// serialization, excluding the Hash field itself.
func (b *Block) CalculateHash() string {
	txs := make([]interface{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.CanonicalMap()
	}

	payload := map[string]interface{}{
		"index":         canonicaljson.Int(b.Index),
		"previous_hash": b.PreviousHash,
		"transactions":  txs,
		"nonce":         canonicaljson.Uint(b.Nonce),
		"timestamp":     canonicaljson.Float(b.Timestamp),
	}

	encoded, err := canonicaljson.Marshal(payload)
	if err != nil {
		// payload is built exclusively from types canonicaljson accepts;
		// a failure here means this package's own invariant broke.
		panic(err)
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// IsValidHash reports whether the block's hash, as currently set, begins
// with the difficulty prefix (a run of hex zeros).
func (b *Block) IsValidHash(difficulty string) bool {
	if len(b.Hash) < len(difficulty) {
		return false
	}
	return b.Hash[:len(difficulty)] == difficulty
}

// ContainsTransaction reports whether id appears among this block's
// transactions.
func (b *Block) ContainsTransaction(id string) bool {
	for _, tx := range b.Transactions {
		if tx.ID == id {
			return true
		}
	}
	return false
}
