package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/block"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/transaction"
)

// TestGenesisHashFixed checks the genesis block's fields match the
// canonical form {"index":0,"nonce":0,"previous_hash":"0"*64,
// "timestamp":0,"transactions":[]} with sorted keys and no whitespace,
// and that its hash is a pure function of those fields.
func TestGenesisHashFixed(t *testing.T) {
	genesis := block.CreateGenesis()
	require.Equal(t, 0, genesis.Index)
	require.Equal(t, block.ZeroHash, genesis.PreviousHash)
	require.Len(t, genesis.PreviousHash, 64)
	require.Empty(t, genesis.Transactions)
	require.Equal(t, uint64(0), genesis.Nonce)
	require.Equal(t, float64(0), genesis.Timestamp)
	require.Len(t, genesis.Hash, 64)
	require.Equal(t, genesis.CalculateHash(), genesis.Hash)
}

func TestGenesisAgreement(t *testing.T) {
	a := block.CreateGenesis()
	b := block.CreateGenesis()
	require.Equal(t, a.Hash, b.Hash)
}

func TestHashDeterminism(t *testing.T) {
	tx, err := transaction.New("alice", "bob", 10)
	require.NoError(t, err)

	b := block.New(1, block.ZeroHash, []*transaction.Transaction{tx}, 42, 123456.789)
	recomputed := b.CalculateHash()
	require.Equal(t, b.Hash, recomputed)
}

func TestIsValidHash(t *testing.T) {
	b := block.CreateGenesis()
	b.Hash = "000abc"
	require.True(t, b.IsValidHash("000"))
	require.False(t, b.IsValidHash("0000"))

	b.Hash = "abc"
	require.False(t, b.IsValidHash("000"))
}

func TestContainsTransaction(t *testing.T) {
	tx, err := transaction.New("alice", "bob", 10)
	require.NoError(t, err)

	b := block.New(1, block.ZeroHash, []*transaction.Transaction{tx}, 0, 0)
	require.True(t, b.ContainsTransaction(tx.ID))
	require.False(t, b.ContainsTransaction("does-not-exist"))
}
