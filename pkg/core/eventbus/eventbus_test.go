package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/eventbus"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := eventbus.New()

	var got interface{}
	b.Subscribe(eventbus.BlockAccepted, func(payload interface{}) {
		got = payload
	})

	b.Publish(eventbus.BlockAccepted, "block-1")
	require.Equal(t, "block-1", got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := eventbus.New()

	calls := 0
	id := b.Subscribe(eventbus.TransactionAccepted, func(interface{}) { calls++ })
	b.Publish(eventbus.TransactionAccepted, nil)
	require.Equal(t, 1, calls)

	b.Unsubscribe(eventbus.TransactionAccepted, id)
	b.Publish(eventbus.TransactionAccepted, nil)
	require.Equal(t, 1, calls)
}

func TestPublishReachesOnlyMatchingTopic(t *testing.T) {
	b := eventbus.New()

	var txCalls, blockCalls int
	b.Subscribe(eventbus.TransactionAccepted, func(interface{}) { txCalls++ })
	b.Subscribe(eventbus.BlockAccepted, func(interface{}) { blockCalls++ })

	b.Publish(eventbus.TransactionAccepted, nil)
	require.Equal(t, 1, txCalls)
	require.Equal(t, 0, blockCalls)
}

func TestNilBusPublishIsSafe(t *testing.T) {
	var b *eventbus.Bus
	require.NotPanics(t, func() {
		b.Publish(eventbus.BlockAccepted, "x")
	})
}
