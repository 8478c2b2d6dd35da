// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package eventbus is a small in-process publish/subscribe hub for node
// lifecycle events (accepted transactions and blocks), decoupling the
// node runtime from whatever wants to observe it: logging, metrics, or a
// test harness waiting on a condition.
package eventbus

import (
	"sync"

	logger "github.com/sirupsen/logrus"
)

var log = logger.WithFields(logger.Fields{"prefix": "eventbus"})

// Topic identifies a class of event a Bus can publish.
type Topic string

const (
	// TransactionAccepted fires with a *transaction.Transaction whenever
	// AddTransaction admits a new transaction to a node's mempool.
	TransactionAccepted Topic = "transaction_accepted"
	// BlockAccepted fires with a *block.Block whenever AddBlock or
	// ReplaceChain extends a node's chain.
	BlockAccepted Topic = "block_accepted"
)

// Listener receives the payload published on a topic it subscribed to.
type Listener func(payload interface{})

type subscription struct {
	id       uint32
	listener Listener
}

// Bus fans a published event out to every listener subscribed to its
// topic. The zero value is not usable; construct with New.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint32
	listeners map[Topic][]subscription
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{listeners: make(map[Topic][]subscription)}
}

// Subscribe registers listener for topic and returns an id that
// Unsubscribe can later use to remove it.
func (b *Bus) Subscribe(topic Topic, listener Listener) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[topic] = append(b.listeners[topic], subscription{id: id, listener: listener})
	return id
}

// Unsubscribe removes the listener id previously returned by Subscribe
// for topic. It is a no-op if id is not found.
func (b *Bus) Unsubscribe(topic Topic, id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[topic]
	for i, s := range subs {
		if s.id == id {
			b.listeners[topic] = append(subs[:i:i], subs[i+1:]...)
			log.WithField("topic", topic).WithField("id", id).Debug("unsubscribed")
			return
		}
	}
}

// Publish calls every listener currently subscribed to topic with
// payload, synchronously and in subscription order. A nil Bus is valid
// and publishes to nobody, so callers may leave event publishing
// optional without a nil check at every call site.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.listeners[topic]))
	copy(subs, b.listeners[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.listener(payload)
	}
}
