package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wsAdapter "github.com/lorrc/ticket-tally/internal/adapters/primary/websocket"
	"github.com/lorrc/ticket-tally/internal/auth"
	"github.com/lorrc/ticket-tally/internal/config"
	"github.com/lorrc/ticket-tally/internal/core/domain"
)

func newWSServer(t *testing.T, tm *auth.TokenManager) (*httptest.Server, *wsAdapter.Hub) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := wsAdapter.NewHub(testLogger())
	go hub.Run(ctx)

	cfg := &config.Config{App: config.AppConfig{Environment: "test"}}
	srv := httptest.NewServer(NewWebSocketHandler(hub, tm, cfg, testLogger()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketHandler_AnonymousReceivesUpdates(t *testing.T) {
	srv, hub := newWSServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(domain.Event{
		Type: domain.EventTallyUpdated,
		Payload: domain.TallyUpdatedPayload{
			Action:   "append",
			Position: 2,
			Date:     "2024-01-01",
		},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type    string                     `json:"type"`
		Payload domain.TallyUpdatedPayload `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, string(domain.EventTallyUpdated), event.Type)
	assert.Equal(t, "2024-01-01", event.Payload.Date)
}

func TestWebSocketHandler_RequiresTokenWhenAuthEnabled(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Hour)
	srv, _ := newWSServer(t, tm)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv)+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	token, err := tm.GenerateToken("asha")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token, nil)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"tally.example.com", "*.corp.example"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://tally.example.com", true},
		{"https://evil.example.com", false},
		{"https://ops.corp.example", true},
		{"https://corp.example", true},
		{"https://notcorp.example", false},
		{"::not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.origin, allowed))
		})
	}
}
