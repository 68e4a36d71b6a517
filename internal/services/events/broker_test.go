package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

func newTestBroker(bufSize int) *Broker {
	return NewBroker(bufSize, common.GetLogger())
}

func TestBroker_SendToConnectedClient(t *testing.T) {
	b := newTestBroker(4)

	ch := b.Connect("client-1")
	ok := b.Send("client-1", New(interfaces.EventLog, map[string]any{"message": "hello"}))
	require.True(t, ok)

	ev := <-ch
	assert.Equal(t, interfaces.EventLog, ev.Kind)
	assert.Equal(t, "hello", ev.Data["message"])
	assert.NotEmpty(t, ev.Timestamp)
}

func TestBroker_SendToUnknownClient(t *testing.T) {
	b := newTestBroker(4)

	ok := b.Send("nobody", New(interfaces.EventLog, nil))
	assert.False(t, ok)
}

func TestBroker_SendFullBufferDoesNotBlock(t *testing.T) {
	b := newTestBroker(2)
	b.Connect("client-1")

	assert.True(t, b.Send("client-1", New(interfaces.EventProgress, nil)))
	assert.True(t, b.Send("client-1", New(interfaces.EventProgress, nil)))
	// Third send exceeds the buffer; it must fail fast rather than block.
	assert.False(t, b.Send("client-1", New(interfaces.EventProgress, nil)))

	// Client stays connected; Send drops, only Broadcast prunes.
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroker_ReconnectReplacesChannel(t *testing.T) {
	b := newTestBroker(4)

	old := b.Connect("client-1")
	fresh := b.Connect("client-1")

	// The replaced channel is closed so a stale consumer loop exits.
	_, open := <-old
	assert.False(t, open)

	require.True(t, b.Send("client-1", New(interfaces.EventConnected, nil)))
	ev := <-fresh
	assert.Equal(t, interfaces.EventConnected, ev.Kind)
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroker_Disconnect(t *testing.T) {
	b := newTestBroker(4)

	ch := b.Connect("client-1")
	b.Disconnect("client-1", ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.ClientCount())

	// Disconnecting an unknown client is a no-op.
	b.Disconnect("client-1", ch)
	assert.False(t, b.Send("client-1", New(interfaces.EventLog, nil)))
}

func TestBroker_StaleDisconnectKeepsReplacement(t *testing.T) {
	b := newTestBroker(4)

	old := b.Connect("client-1")
	fresh := b.Connect("client-1")

	// The replaced handler wakes on its closed channel and runs its
	// deferred cleanup. That must not tear down the new connection.
	_, open := <-old
	require.False(t, open)
	b.Disconnect("client-1", old)

	assert.Equal(t, 1, b.ClientCount())
	require.True(t, b.Send("client-1", New(interfaces.EventLog, map[string]any{"message": "still here"})))

	ev, open := <-fresh
	require.True(t, open)
	assert.Equal(t, "still here", ev.Data["message"])

	// The new connection's own cleanup still disconnects it.
	b.Disconnect("client-1", fresh)
	assert.Equal(t, 0, b.ClientCount())
}

func TestBroker_ConcurrentSendAndReconnect(t *testing.T) {
	b := newTestBroker(2)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Send("client-1", New(interfaces.EventProgress, nil))
				}
			}
		}()
	}

	// Churn the client's channel while producers send. Send must never
	// panic on a channel closed by a reconnect or disconnect.
	var last <-chan interfaces.Event
	for i := 0; i < 1000; i++ {
		ch := b.Connect("client-1")
		go func() {
			for range ch {
			}
		}()
		last = ch
		if i%3 == 0 {
			b.Disconnect("client-1", ch)
		}
	}
	b.Disconnect("client-1", last)
	close(stop)
	wg.Wait()
}

func TestBroker_BroadcastPrunesFullClients(t *testing.T) {
	b := newTestBroker(1)

	healthy := b.Connect("healthy")
	b.Connect("stalled")

	// Fill the stalled client's buffer.
	require.True(t, b.Send("stalled", New(interfaces.EventProgress, nil)))

	b.Broadcast(New(interfaces.EventHeartbeat, nil))

	// Healthy client received the broadcast; stalled client was pruned.
	ev := <-healthy
	assert.Equal(t, interfaces.EventHeartbeat, ev.Kind)
	assert.Equal(t, 1, b.ClientCount())
	assert.False(t, b.Send("stalled", New(interfaces.EventLog, nil)))
}

func TestBroker_BroadcastReachesAllClients(t *testing.T) {
	b := newTestBroker(4)

	channels := make([]<-chan interfaces.Event, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		channels = append(channels, b.Connect(id))
	}

	b.Broadcast(New(interfaces.EventScoresUpdate, map[string]any{"composite": 72.5}))

	for _, ch := range channels {
		ev := <-ch
		assert.Equal(t, interfaces.EventScoresUpdate, ev.Kind)
		assert.Equal(t, 72.5, ev.Data["composite"])
	}
}
