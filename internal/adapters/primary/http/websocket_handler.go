package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	mw "github.com/lorrc/ticket-tally/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/ticket-tally/internal/adapters/primary/websocket"
	"github.com/lorrc/ticket-tally/internal/auth"
	"github.com/lorrc/ticket-tally/internal/config"
)

// WebSocketHandler upgrades dashboard connections to the live update feed.
// A nil TokenManager lets anyone watch.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	tm       *auth.TokenManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *wsAdapter.Hub, tm *auth.TokenManager, cfg *config.Config, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:    hub,
		tm:     tm,
		logger: logger.With("handler", "websocket"),
	}

	devMode := cfg.IsDevelopment()
	allowed := cfg.WebSocket.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if devMode || originAllowed(origin, allowed) {
				return true
			}
			h.logger.Warn("websocket origin rejected",
				"origin", origin,
				"remote_addr", r.RemoteAddr,
			)
			return false
		},
	}
	return h
}

// originAllowed accepts an empty origin (non-browser clients) or one whose
// host is listed. "*.example.com" also matches example.com itself.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	for _, a := range allowed {
		if base, ok := strings.CutPrefix(a, "*."); ok {
			if u.Host == base || strings.HasSuffix(u.Host, "."+base) {
				return true
			}
		} else if u.Host == a {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(
		"request_id", GetRequestID(r.Context()),
		"remote_addr", r.RemoteAddr,
	)

	var operator string
	if h.tm != nil {
		token := viewerToken(r)
		if token == "" {
			logger.Warn("websocket rejected: missing token")
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}
		claims, err := h.tm.ValidateToken(token)
		if err != nil {
			logger.Warn("websocket rejected: invalid token", "error", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		operator = claims.Operator
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := h.hub.Attach(conn, operator, logger)
	logger.Info("websocket viewer connected", "client_id", client.ID, "operator", operator)
}

// viewerToken reads the token from the query string, which browsers can set
// on a websocket URL, falling back to the page's session cookie.
func viewerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie(mw.TokenCookie); err == nil {
		return c.Value
	}
	return ""
}
