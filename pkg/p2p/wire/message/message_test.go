package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/block"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/transaction"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/p2p/wire/message"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tx, err := transaction.New(transaction.Coinbase, "alice", 100)
	require.NoError(t, err)

	original := message.NewTransactionMessage(tx).WithSender("127.0.0.1:9000")

	framed, err := message.Encode(original)
	require.NoError(t, err)
	require.Greater(t, len(framed), message.HeaderSize)

	body := framed[message.HeaderSize:]
	decoded, err := message.Decode(body)
	require.NoError(t, err)

	require.Equal(t, message.NewTransaction, decoded.Type)
	require.Equal(t, "127.0.0.1:9000", decoded.Sender)

	got, err := decoded.Transaction()
	require.NoError(t, err)
	require.True(t, tx.Equal(got))
}

func TestEncodeHeaderCarriesBodyLength(t *testing.T) {
	framed, err := message.Encode(message.PingMessage())
	require.NoError(t, err)

	body := framed[message.HeaderSize:]
	headerLen := uint32(framed[0])<<24 | uint32(framed[1])<<16 | uint32(framed[2])<<8 | uint32(framed[3])
	require.Equal(t, uint32(len(body)), headerLen)
}

func TestNewBlockMessageRoundTrip(t *testing.T) {
	b := block.CreateGenesis()
	framed, err := message.Encode(message.NewBlockMessage(b))
	require.NoError(t, err)

	decoded, err := message.Decode(framed[message.HeaderSize:])
	require.NoError(t, err)
	require.Equal(t, message.NewBlock, decoded.Type)

	got, err := decoded.Block()
	require.NoError(t, err)
	require.Equal(t, b.Hash, got.Hash)
}

func TestResponseChainMessageRoundTrip(t *testing.T) {
	genesis := block.CreateGenesis()
	tx, err := transaction.New(transaction.Coinbase, "alice", 50)
	require.NoError(t, err)

	framed, err := message.Encode(message.ResponseChainMessage([]*block.Block{genesis}, []*transaction.Transaction{tx}))
	require.NoError(t, err)

	decoded, err := message.Decode(framed[message.HeaderSize:])
	require.NoError(t, err)

	chain, pending, err := decoded.Chain()
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, genesis.Hash, chain[0].Hash)
	require.Len(t, pending, 1)
	require.True(t, tx.Equal(pending[0]))
}

func TestPeersListMessageRoundTrip(t *testing.T) {
	framed, err := message.Encode(message.PeersListMessage([]string{"10.0.0.1:9000", "10.0.0.2:9000"}))
	require.NoError(t, err)

	decoded, err := message.Decode(framed[message.HeaderSize:])
	require.NoError(t, err)

	peers, err := decoded.Peers()
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, peers)
}

func TestNoPayloadMessagesRoundTrip(t *testing.T) {
	for _, m := range []message.Message{
		message.RequestChainMessage(),
		message.PingMessage(),
		message.PongMessage(),
		message.DiscoverPeersMessage(),
	} {
		framed, err := message.Encode(m)
		require.NoError(t, err)

		decoded, err := message.Decode(framed[message.HeaderSize:])
		require.NoError(t, err)
		require.Equal(t, m.Type, decoded.Type)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := message.Decode([]byte(`{"type":"SELF_DESTRUCT","payload":{},"sender":""}`))
	require.Error(t, err)
	require.ErrorIs(t, err, message.ErrUnknownType)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := message.Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestValidateRejectsZeroValueMessage(t *testing.T) {
	var m message.Message
	require.ErrorIs(t, m.Validate(), message.ErrUnknownType)
}
