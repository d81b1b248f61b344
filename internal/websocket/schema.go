package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest mirrors one answer change. Answer is the 1-based option;
// 0 means the answer was cleared.
type AutosaveRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer int    `json:"ans"`
}

type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventPong    Event = "pong"
)

// ResponseEnvelope is used by clients to peek at the event.
type ResponseEnvelope struct {
	Event Event `json:"event"`
}

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	QID    string `json:"q_id"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
