// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package message implements the peer wire protocol: a closed set of
// typed messages, length-framed as a 4-byte big-endian size header
// followed by UTF-8 JSON, exchanged over short-lived TCP connections.
package message

import (
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/block"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/transaction"
)

// Type identifies one of the eight wire message kinds. It is a closed
// enum: any other string decodes into a Message but fails Validate.
type Type string

// The eight message kinds the protocol supports.
const (
	NewTransaction Type = "NEW_TRANSACTION"
	NewBlock       Type = "NEW_BLOCK"
	RequestChain   Type = "REQUEST_CHAIN"
	ResponseChain  Type = "RESPONSE_CHAIN"
	Ping           Type = "PING"
	Pong           Type = "PONG"
	DiscoverPeers  Type = "DISCOVER_PEERS"
	PeersList      Type = "PEERS_LIST"
)

// ErrUnknownType is returned by Validate when a decoded message's Type is
// not one of the eight known kinds. The node runtime treats this as a
// PeerProtocolError: the connection is dropped, never a crash.
var ErrUnknownType = errors.New("message: unknown type")

// HeaderSize is the length, in bytes, of the big-endian uint32 frame
// header that precedes every message body on the wire.
const HeaderSize = 4

// Message is one frame of the peer protocol: a typed kind, a
// kind-specific JSON payload, and the host:port of the node that sent it.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Sender  string          `json:"sender"`
}

func knownTypes() map[Type]struct{} {
	return map[Type]struct{}{
		NewTransaction: {}, NewBlock: {}, RequestChain: {}, ResponseChain: {},
		Ping: {}, Pong: {}, DiscoverPeers: {}, PeersList: {},
	}
}

// Validate reports ErrUnknownType if m.Type is not one of the eight kinds
// the protocol defines.
func (m Message) Validate() error {
	if _, ok := knownTypes()[m.Type]; !ok {
		return errors.Wrapf(ErrUnknownType, "%q", m.Type)
	}
	return nil
}

// WithSender returns a copy of m with Sender set, as the transport layer
// does immediately before writing a message to a connection.
func (m Message) WithSender(addr string) Message {
	m.Sender = addr
	return m
}

// Encode serializes m to its wire form: a 4-byte big-endian length header
// followed by the UTF-8 JSON body.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "message: encode")
	}

	framed := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(framed[:HeaderSize], uint32(len(body)))
	copy(framed[HeaderSize:], body)
	return framed, nil
}

// Decode parses a message body (the header already stripped by the
// transport) and validates its Type.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, errors.Wrap(err, "message: decode")
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// --- payload shapes -------------------------------------------------

type transactionPayload struct {
	Transaction *transaction.Transaction `json:"transaction"`
}

type blockPayload struct {
	Block *block.Block `json:"block"`
}

type chainPayload struct {
	Blockchain blockchainDump `json:"blockchain"`
}

type blockchainDump struct {
	Chain               []*block.Block             `json:"chain"`
	PendingTransactions []*transaction.Transaction `json:"pending_transactions"`
}

type peersPayload struct {
	Peers []string `json:"peers"`
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// every payload type above is built from plain structs/slices of
		// strings and already-JSON-tagged domain types; a failure here
		// means one of those types stopped being marshalable.
		panic(err)
	}
	return raw
}

// NewTransactionMessage wraps tx as a NEW_TRANSACTION message.
func NewTransactionMessage(tx *transaction.Transaction) Message {
	return Message{Type: NewTransaction, Payload: mustMarshal(transactionPayload{Transaction: tx})}
}

// NewBlockMessage wraps b as a NEW_BLOCK message.
func NewBlockMessage(b *block.Block) Message {
	return Message{Type: NewBlock, Payload: mustMarshal(blockPayload{Block: b})}
}

// RequestChainMessage requests the receiver's full chain.
func RequestChainMessage() Message {
	return Message{Type: RequestChain, Payload: mustMarshal(struct{}{})}
}

// ResponseChainMessage wraps a node's chain and mempool as a
// RESPONSE_CHAIN message.
func ResponseChainMessage(chain []*block.Block, pending []*transaction.Transaction) Message {
	return Message{
		Type: ResponseChain,
		Payload: mustMarshal(chainPayload{Blockchain: blockchainDump{
			Chain:               chain,
			PendingTransactions: pending,
		}}),
	}
}

// PingMessage checks peer connectivity.
func PingMessage() Message {
	return Message{Type: Ping, Payload: mustMarshal(struct{}{})}
}

// PongMessage replies to a PING.
func PongMessage() Message {
	return Message{Type: Pong, Payload: mustMarshal(struct{}{})}
}

// DiscoverPeersMessage requests a peer's known peer set.
func DiscoverPeersMessage() Message {
	return Message{Type: DiscoverPeers, Payload: mustMarshal(struct{}{})}
}

// PeersListMessage wraps peers as a PEERS_LIST message.
func PeersListMessage(peers []string) Message {
	return Message{Type: PeersList, Payload: mustMarshal(peersPayload{Peers: peers})}
}

// --- payload extraction ---------------------------------------------

// Transaction extracts the transaction carried by a NEW_TRANSACTION
// message's payload.
func (m Message) Transaction() (*transaction.Transaction, error) {
	var p transactionPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, errors.Wrap(err, "message: decode transaction payload")
	}
	return p.Transaction, nil
}

// Block extracts the block carried by a NEW_BLOCK message's payload.
func (m Message) Block() (*block.Block, error) {
	var p blockPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, errors.Wrap(err, "message: decode block payload")
	}
	return p.Block, nil
}

// Chain extracts the chain and pending transactions carried by a
// RESPONSE_CHAIN message's payload.
func (m Message) Chain() ([]*block.Block, []*transaction.Transaction, error) {
	var p chainPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, nil, errors.Wrap(err, "message: decode chain payload")
	}
	return p.Blockchain.Chain, p.Blockchain.PendingTransactions, nil
}

// Peers extracts the peer addresses carried by a PEERS_LIST message's
// payload.
func (m Message) Peers() ([]string, error) {
	var p peersPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, errors.Wrap(err, "message: decode peers payload")
	}
	return p.Peers, nil
}
