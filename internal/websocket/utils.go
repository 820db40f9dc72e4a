package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds a single frame write. A stalled client is
	// disconnected rather than backing up the event channel behind it.
	writeTimeout = 10 * time.Second

	// readTimeout is the idle limit on the client side of the stream.
	// Clients ping well inside it; hitting it means the peer is gone.
	readTimeout = 5 * time.Minute
)

// WriteTyped sends one typed frame, bounded by writeTimeout.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse frame.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next inbound frame, refreshing the idle
// deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	return conn.ReadJSON(v)
}
