package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/praxislabs/readiness/internal/domain"
	"github.com/praxislabs/readiness/internal/identity"
	"github.com/praxislabs/readiness/internal/session"
	"github.com/praxislabs/readiness/internal/store"
)

// WebSocketHandler streams session events to the page so the step
// indicator and submit affordance update without polling.
type WebSocketHandler struct {
	repo          store.Repository
	sessions      *session.Manager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(repo store.Repository, sessions *session.Manager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		repo:          repo,
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	ctrl, err := h.sessions.Get(r.Context(), userID, effectiveEntitled(user, h.isDev))
	if err != nil {
		slog.Error("Failed to load session for event stream", "error", err, "user_id", userID)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	events, cancel := h.sessions.Events().Subscribe(userID)
	defer cancel()

	// The stream is write-only; CloseRead surfaces client disconnects
	// through the returned context.
	ctx := ws.CloseRead(r.Context())

	// Send the current state up front so a freshly attached page does
	// not wait for the next transition.
	snap := ctrl.Snapshot()
	initial := session.Event{
		UserID:        snap.UserID,
		Kind:          snap.Kind,
		Status:        snap.Status,
		QuestionIndex: snap.CurrentQuestionIndex,
		TotalSections: snap.TotalSections,
		Loading:       ctrl.Loading(),
		Completed:     snap.Status == domain.StatusCompleted,
	}
	if err := writeEvent(ctx, ws, initial); err != nil {
		slog.Debug("Failed to write initial session event", "error", err, "user_id", userID)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := writeEvent(ctx, ws, ev); err != nil {
				slog.Debug("Failed to write session event", "error", err, "user_id", userID)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
