// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package peer implements the node runtime: a listening socket, gossip
// fan-out, chain synchronization, and the glue that turns the chain and
// miner packages into a cooperating network of equal nodes.
package peer

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/chain"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/block"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/data/transaction"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/eventbus"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/miner"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/p2p/wire/message"
)

var log = logger.WithFields(logger.Fields{"prefix": "peer"})

// DefaultDialTimeout and DefaultReadTimeout bound every outbound
// connection and every read of an inbound message, so one unresponsive
// peer cannot stall the node. Both are overridable via Node.SetTimeouts.
const (
	DefaultDialTimeout = 10 * time.Second
	DefaultReadTimeout = 10 * time.Second
)

// Node owns one Chain, a dynamic peer set, and the listening socket that
// other nodes connect to. Only one proof-of-work search runs at a time;
// Mine constructs a fresh Miner for every attempt.
type Node struct {
	addr  string
	chain *chain.Chain
	bus   *eventbus.Bus

	dialTimeout   time.Duration
	readTimeout   time.Duration
	progressEvery int

	mu       sync.Mutex
	peers    map[string]struct{}
	running  bool
	listener net.Listener

	miningMu sync.Mutex
	active   *miner.Miner
}

// New returns a Node bound to addr (its own host:port, used for self
// exclusion and as the Sender on outgoing messages) and c. Its event bus
// publishes eventbus.TransactionAccepted and eventbus.BlockAccepted
// whenever the node admits one, locally or from a peer; Events exposes it
// for subscribers (logging, metrics, tests).
func New(addr string, c *chain.Chain) *Node {
	return &Node{
		addr:        addr,
		chain:       c,
		bus:         eventbus.New(),
		dialTimeout: DefaultDialTimeout,
		readTimeout: DefaultReadTimeout,
		peers:       make(map[string]struct{}),
	}
}

// Events returns the node's event bus.
func (n *Node) Events() *eventbus.Bus {
	return n.bus
}

// SetTimeouts overrides the dial and read deadlines applied to every
// outbound connection, as loaded from a MinerTuning configuration.
func (n *Node) SetTimeouts(dial, read time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialTimeout = dial
	n.readTimeout = read
}

// SetProgressReportEvery overrides how many nonce attempts pass between
// mining progress log lines, as loaded from a MinerTuning configuration.
// It takes effect on the next call to Mine.
func (n *Node) SetProgressReportEvery(every int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progressEvery = every
}

// Addr returns the node's own host:port.
func (n *Node) Addr() string {
	return n.addr
}

// ChainBalance returns the node's view of address's balance across its
// confirmed chain and mempool.
func (n *Node) ChainBalance(address string) float64 {
	return n.chain.GetBalance(address)
}

// ChainLen returns the number of blocks in the node's current chain,
// including genesis.
func (n *Node) ChainLen() int {
	return n.chain.Len()
}

// Peers returns a snapshot of the current peer set.
func (n *Node) Peers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.peers))
	for p := range n.peers {
		out = append(out, p)
	}
	return out
}

func (n *Node) addPeerLocked(addr string) bool {
	if addr == "" || addr == n.addr {
		return false
	}
	if _, known := n.peers[addr]; known {
		return false
	}
	n.peers[addr] = struct{}{}
	return true
}

// reuseAddrControl sets SO_REUSEADDR on the listening socket before bind,
// so a restarted node can immediately rebind its old address.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Start binds the node's listening socket and begins accepting
// connections in a background goroutine.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return ErrAlreadyRunning
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", n.addr)
	if err != nil {
		n.mu.Unlock()
		return errors.Wrap(err, "peer: listen")
	}

	n.listener = ln
	n.running = true
	n.mu.Unlock()

	log.WithField("addr", n.addr).Info("node listening")
	go n.acceptLoop()
	return nil
}

// Stop cancels any active mining, closes the listener, and marks the node
// stopped. Handlers already in flight finish on their own.
func (n *Node) Stop() {
	n.miningMu.Lock()
	if n.active != nil {
		n.active.StopMining()
	}
	n.miningMu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	n.running = false
	if n.listener != nil {
		n.listener.Close()
	}
}

func (n *Node) isRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if !n.isRunning() {
				return
			}
			log.WithError(err).Warn("accept failed")
			continue
		}
		go n.handleConn(conn)
	}
}

// handleConn reads exactly one framed message, dispatches it against
// shared state, optionally writes one reply, and closes the connection.
func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(n.readTimeout))

	msg, err := readFramed(conn)
	if err != nil {
		log.WithError(err).Debug("read failed")
		return
	}

	reply := n.dispatch(msg)
	if reply == nil {
		return
	}

	if err := writeFramed(conn, *reply); err != nil {
		log.WithError(err).Debug("reply write failed")
	}
}

// dispatch applies the incoming-message rules and returns an optional
// reply. It never panics: an unrecognized type is rejected by the codec
// before dispatch ever sees it.
func (n *Node) dispatch(msg message.Message) *message.Message {
	switch msg.Type {
	case message.NewTransaction:
		tx, err := msg.Transaction()
		if err != nil {
			log.WithError(err).Debug("bad transaction payload")
			return nil
		}
		if n.chain.AddTransaction(tx) {
			n.bus.Publish(eventbus.TransactionAccepted, tx)
			go n.fanout(message.NewTransactionMessage(tx).WithSender(n.addr), msg.Sender)
		}
		return nil

	case message.NewBlock:
		b, err := msg.Block()
		if err != nil {
			log.WithError(err).Debug("bad block payload")
			return nil
		}
		if n.chain.AddBlock(b) {
			n.bus.Publish(eventbus.BlockAccepted, b)
			n.cancelMining()
			go n.fanout(message.NewBlockMessage(b).WithSender(n.addr), msg.Sender)
		}
		return nil

	case message.RequestChain:
		blocks, pending := n.chain.Snapshot()
		reply := message.ResponseChainMessage(blocks, pending).WithSender(n.addr)
		return &reply

	case message.ResponseChain:
		blocks, _, err := msg.Chain()
		if err != nil {
			log.WithError(err).Debug("bad chain payload")
			return nil
		}
		if n.chain.ReplaceChain(blocks) {
			n.bus.Publish(eventbus.BlockAccepted, blocks[len(blocks)-1])
		}
		return nil

	case message.Ping:
		reply := message.PongMessage().WithSender(n.addr)
		return &reply

	case message.Pong:
		return nil

	case message.DiscoverPeers:
		reply := message.PeersListMessage(n.Peers()).WithSender(n.addr)
		return &reply

	case message.PeersList:
		peers, err := msg.Peers()
		if err != nil {
			log.WithError(err).Debug("bad peers payload")
			return nil
		}
		n.mu.Lock()
		for _, p := range peers {
			n.addPeerLocked(p)
		}
		n.mu.Unlock()
		return nil
	}
	return nil
}

func (n *Node) cancelMining() {
	n.miningMu.Lock()
	defer n.miningMu.Unlock()
	if n.active != nil {
		n.active.StopMining()
	}
}

// ConnectToPeer dials addr, exchanges a PING/PONG liveness check, and on
// success adds addr to the peer set. The node's own address is rejected.
func (n *Node) ConnectToPeer(addr string) error {
	if addr == n.addr {
		return ErrSelfAddress
	}

	_, err := n.sendRequest(addr, message.PingMessage())
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.addPeerLocked(addr)
	n.mu.Unlock()
	return nil
}

// SyncBlockchain asks every known peer for its chain, in turn, and adopts
// the first one that is a valid, strictly-longer replacement.
func (n *Node) SyncBlockchain() {
	for _, p := range n.Peers() {
		reply, err := n.sendRequest(p, message.RequestChainMessage())
		if err != nil {
			log.WithError(err).WithField("peer", p).Debug("sync request failed")
			continue
		}

		blocks, _, err := reply.Chain()
		if err != nil {
			log.WithError(err).WithField("peer", p).Debug("sync reply malformed")
			continue
		}

		if n.chain.ReplaceChain(blocks) {
			n.bus.Publish(eventbus.BlockAccepted, blocks[len(blocks)-1])
			log.WithField("peer", p).Info("adopted longer chain")
			return
		}
	}
}

// BroadcastTransaction admits tx locally and, only on success, gossips it
// to every known peer.
func (n *Node) BroadcastTransaction(tx *transaction.Transaction) bool {
	if !n.chain.AddTransaction(tx) {
		return false
	}
	n.bus.Publish(eventbus.TransactionAccepted, tx)
	n.fanout(message.NewTransactionMessage(tx).WithSender(n.addr), "")
	return true
}

// BroadcastBlock admits b locally and, only on success, gossips it to
// every known peer.
func (n *Node) BroadcastBlock(b *block.Block) bool {
	if !n.chain.AddBlock(b) {
		return false
	}
	n.bus.Publish(eventbus.BlockAccepted, b)
	n.fanout(message.NewBlockMessage(b).WithSender(n.addr), "")
	return true
}

// Mine runs one proof-of-work search over the current mempool and, if it
// finds a block, broadcasts it. It returns nil if there was nothing to
// mine, if another search is already running on this node, or if the
// search was cancelled by Stop or by an accepted incoming NEW_BLOCK.
func (n *Node) Mine() *block.Block {
	m := miner.New(n.chain, n.addr)
	m.SetProgressEvery(n.progressEvery)

	n.miningMu.Lock()
	if n.active != nil {
		n.miningMu.Unlock()
		return nil
	}
	n.active = m
	n.miningMu.Unlock()

	b := m.MineBlock(nil, func(nonce uint64) {
		log.WithField("nonce", nonce).Debug("mining in progress")
	})

	n.miningMu.Lock()
	n.active = nil
	n.miningMu.Unlock()

	if b == nil {
		return nil
	}
	n.BroadcastBlock(b)
	return b
}

// fanout writes msg to every known peer except exclude, ignoring
// individual peer failures so one unreachable node cannot stall gossip.
func (n *Node) fanout(msg message.Message, exclude string) {
	for _, p := range n.Peers() {
		if p == exclude {
			continue
		}
		if err := n.sendOneWay(p, msg); err != nil {
			log.WithError(err).WithField("peer", p).Debug("gossip send failed")
		}
	}
}

// sendOneWay dials addr, writes msg, and closes without waiting for a
// reply.
func (n *Node) sendOneWay(addr string, msg message.Message) error {
	conn, err := net.DialTimeout("tcp", addr, n.dialTimeout)
	if err != nil {
		return errors.Wrap(ErrPeerUnreachable, err.Error())
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(n.dialTimeout))
	return writeFramed(conn, msg)
}

// sendRequest dials addr, writes msg, and reads exactly one framed reply.
func (n *Node) sendRequest(addr string, msg message.Message) (*message.Message, error) {
	conn, err := net.DialTimeout("tcp", addr, n.dialTimeout)
	if err != nil {
		return nil, errors.Wrap(ErrPeerUnreachable, err.Error())
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(n.readTimeout))

	if err := writeFramed(conn, msg); err != nil {
		return nil, err
	}

	reply, err := readFramed(conn)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// writeFramed encodes msg with its Sender set and writes it whole.
func writeFramed(conn net.Conn, msg message.Message) error {
	framed, err := message.Encode(msg)
	if err != nil {
		return errors.Wrap(ErrPeerProtocol, err.Error())
	}
	if _, err := conn.Write(framed); err != nil {
		return errors.Wrap(ErrPeerTimeout, err.Error())
	}
	return nil
}

// readFramed reads the 4-byte length header and exactly that many bytes
// of body, then decodes it as a message.
func readFramed(conn net.Conn) (message.Message, error) {
	header := make([]byte, message.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return message.Message{}, errors.Wrap(ErrPeerTimeout, err.Error())
	}

	length := binary.BigEndian.Uint32(header)
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return message.Message{}, errors.Wrap(ErrPeerTimeout, err.Error())
	}

	msg, err := message.Decode(body)
	if err != nil {
		return message.Message{}, errors.Wrap(ErrPeerProtocol, err.Error())
	}
	return msg, nil
}
