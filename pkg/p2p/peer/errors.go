// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

package peer

import "github.com/pkg/errors"

// ErrPeerUnreachable is returned when dialing a peer address fails outright.
var ErrPeerUnreachable = errors.New("peer: unreachable")

// ErrPeerTimeout is returned when a dial, write, or read against a peer
// exceeds its deadline.
var ErrPeerTimeout = errors.New("peer: timed out")

// ErrPeerProtocol is returned when a peer's reply cannot be decoded or
// validated as a wire message.
var ErrPeerProtocol = errors.New("peer: protocol violation")

// ErrAlreadyRunning is returned by Start on a Node that is already serving.
var ErrAlreadyRunning = errors.New("peer: node already running")

// ErrSelfAddress is returned when connect_to_peer or an inbound PEERS_LIST
// would add the node's own listening address to its peer set.
var ErrSelfAddress = errors.New("peer: refusing self as peer")
