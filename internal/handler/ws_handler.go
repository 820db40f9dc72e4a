package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/events"
	"github.com/stemsi/tutor-gateway/internal/middleware"
	ws "github.com/stemsi/tutor-gateway/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams chat-surface events to the front-end so it does not
// have to poll for new messages or generation progress.
type WSHandler struct {
	publisher *events.Publisher
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(publisher *events.Publisher, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		publisher: publisher,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// ChatEventStream godoc
// WS /ws/v1/chat/stream
// Upgrades to WebSocket and forwards the user's chat event channel.
func (h *WSHandler) ChatEventStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	// Subscribe before acknowledging so no event published after the
	// upgrade can be missed.
	sub := h.publisher.Subscribe(ctx, claims.UserID)
	defer sub.Close()

	// Reader goroutine: the only client action is ping. Pongs are
	// handed to the select below so the connection has a single writer.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var env ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &env); err != nil {
				return
			}
			if env.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				_ = ws.WriteError(conn, "event stream closed")
				return
			}
			frame := ws.ChatEventFrame{Event: ws.EventChat, Payload: msg.Payload}
			if err := ws.WriteTyped(conn, frame); err != nil {
				h.log.Debug().Err(err).Int("user_id", claims.UserID).Msg("WebSocket write failed")
				return
			}
		}
	}
}
