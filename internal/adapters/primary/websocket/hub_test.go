package websocket

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/ticket-tally/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		Hub:    hub,
		Send:   make(chan domain.Event, buffer),
		ID:     "test",
		logger: testLogger(),
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := newTestClient(hub, 4)
	b := newTestClient(hub, 4)
	hub.Register <- a
	hub.Register <- b

	require.NoError(t, hub.Broadcast(domain.Event{Type: domain.EventTallyUpdated}))

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.Send:
			assert.Equal(t, domain.EventTallyUpdated, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	assert.Equal(t, 2, hub.GetClientCount())
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := newTestClient(hub, 0)
	hub.Register <- slow

	require.NoError(t, hub.Broadcast(domain.Event{Type: domain.EventTallyUpdated}))

	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestHub_StopsOnCancel(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := newTestClient(hub, 1)
	hub.Register <- c
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-c.Send
	assert.False(t, open)
}

func TestClient_RepliesToPing(t *testing.T) {
	c := newTestClient(nil, 1)

	c.handleIncomingMessage([]byte(`{"type":"PING"}`))

	ev := <-c.Send
	assert.Equal(t, domain.EventPong, ev.Type)
}

func TestClient_PingAfterDisconnectIsIgnored(t *testing.T) {
	c := newTestClient(nil, 1)
	c.CloseSend()

	assert.NotPanics(t, func() {
		c.handleIncomingMessage([]byte(`{"type":"PING"}`))
	})
	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_MembershipAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := newTestClient(hub, 1)
	done := make(chan bool)
	go func() {
		ok := hub.register(c)
		hub.unregister(c)
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("membership change blocked after the hub stopped")
	}
	assert.Zero(t, hub.GetClientCount())
}
