package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
//
// Chat events originate in the orchestrator and practice controller and
// are fanned out through the events package; the payload field carries
// the already-encoded event body.

type Event string

const (
	EventChat  Event = "chat"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// ChatEventFrame wraps one chat-surface event for the wire.
type ChatEventFrame struct {
	Event   Event  `json:"event"`
	Payload string `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
