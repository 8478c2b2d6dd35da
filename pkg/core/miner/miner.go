// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package miner implements the proof-of-work search: a cancellable loop
// that varies a candidate block's nonce until its hash satisfies the
// chain's difficulty rule.
package miner

import (
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/chain"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/block"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/transaction"
)

var log = logger.WithFields(logger.Fields{"prefix": "miner"})

// ProgressEvery is how many nonce attempts pass between progress callback
// invocations.
const ProgressEvery = 10_000

// ProgressFunc is invoked periodically during a search with the current
// nonce. It must not block and must not touch chain state; the miner
// calls it without holding any lock, but a slow callback still stalls the
// search loop itself.
type ProgressFunc func(nonce uint64)

// Miner performs one proof-of-work search at a time against a Chain. Per
// the spec it is a one-shot object per mining attempt: the Node
// constructs a fresh Miner for every call to mine(), so that a Miner's
// cancellation flag always refers to exactly one in-flight search.
type Miner struct {
	chain   *chain.Chain
	address string
	mining  atomic.Bool

	progressEvery int
}

// New returns a Miner bound to chain. address is stored but not used by
// the search or its log lines, and no reward is credited to it: a
// coinbase credit has to be added as a transaction before mining, which
// Chain.AddTransaction already knows how to admit. Progress callbacks fire every
// ProgressEvery nonces unless SetProgressEvery overrides it.
func New(c *chain.Chain, address string) *Miner {
	return &Miner{chain: c, address: address}
}

// SetProgressEvery overrides how many nonce attempts pass between
// progress callback invocations, as loaded from a MinerTuning
// configuration. A non-positive n is ignored, leaving ProgressEvery in
// effect.
func (m *Miner) SetProgressEvery(n int) {
	if n > 0 {
		m.progressEvery = n
	}
}

func (m *Miner) progressInterval() uint64 {
	if m.progressEvery > 0 {
		return uint64(m.progressEvery)
	}
	return ProgressEvery
}

// IsMining reports whether a search is currently in flight.
func (m *Miner) IsMining() bool {
	return m.mining.Load()
}

// StopMining cancels any in-flight search. It is safe to call
// concurrently with MineBlock and does not take the chain lock, so a
// Node handling an incoming NEW_BLOCK can cancel local mining without
// contending with the miner's tight hashing loop.
func (m *Miner) StopMining() {
	m.mining.Store(false)
}

// MineBlock searches for a nonce that satisfies the chain's difficulty
// rule for a block built from txs (or, if txs is nil, a snapshot of the
// chain's current mempool taken at the start of the search). It returns
// nil if there is nothing to mine or if StopMining is called before a
// valid nonce is found.
func (m *Miner) MineBlock(txs []*transaction.Transaction, onProgress ProgressFunc) *block.Block {
	if txs == nil {
		txs = m.chain.PendingSnapshot()
	}
	if len(txs) == 0 {
		return nil
	}

	tip, length := m.chain.Tip()
	candidate := block.New(length, tip.Hash, txs, 0, nowSeconds())

	m.mining.Store(true)
	log.WithField("index", candidate.Index).Debug("mining started")

	for m.mining.Load() {
		candidate.Hash = candidate.CalculateHash()

		if candidate.IsValidHash(chain.Difficulty) {
			m.mining.Store(false)
			log.WithFields(logger.Fields{"index": candidate.Index, "nonce": candidate.Nonce}).Info("mined block")
			return candidate
		}

		candidate.Nonce++
		if candidate.Nonce == 0 {
			// uint64 wrapped around without finding a valid hash; widen
			// the search space by advancing the timestamp and retrying.
			candidate.Timestamp++
		}

		if onProgress != nil && candidate.Nonce%m.progressInterval() == 0 {
			onProgress(candidate.Nonce)
		}
	}

	log.WithField("index", candidate.Index).Debug("mining cancelled")
	return nil
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
