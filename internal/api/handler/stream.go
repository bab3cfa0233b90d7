package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/dashboard"
)

// Stream timing.
const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// StreamHandler pushes session views over a WebSocket.
type StreamHandler struct {
	store      *dashboard.Store
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

// NewStreamHandler creates a new StreamHandler. A nil checkOrigin keeps the
// upgrader's same-origin check.
func NewStreamHandler(store *dashboard.Store, logger zerolog.Logger, checkOrigin func(*http.Request) bool) *StreamHandler {
	return &StreamHandler{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		pingPeriod: streamPingPeriod,
	}
}

// Stream handles GET /v1/sessions/{id}/stream. The current view is sent
// first, then one JSON text frame per state change until the client goes
// away or the session closes.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.store.Get(id)
	if err != nil {
		response.NotFound(w, r, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug().Err(err).Str("session_id", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	views, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	logger := h.logger.With().Str("session_id", id).Logger()
	logger.Debug().Msg("view stream opened")

	// The read loop only exists to notice pongs and the client closing.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeView(conn, sess.View()); err != nil {
		logger.Debug().Err(err).Msg("initial view write failed")
		return
	}

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			logger.Debug().Msg("view stream closed by client")
			return

		case view, ok := <-views:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := h.writeView(conn, view); err != nil {
				logger.Debug().Err(err).Msg("view write failed")
				return
			}

		case <-ticker.C:
			// An open stream counts as activity for session expiry.
			_, _ = h.store.Get(id)
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) writeView(conn *websocket.Conn, view dashboard.View) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(models.FromView(view))
}
