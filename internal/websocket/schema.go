package websocket

import (
	"encoding/json"

	"github.com/proctorhub/assessment-backend/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer       Action = "answer"
	ActionProctorEvent Action = "proctor_event"
	ActionSubmit       Action = "submit"
	ActionPing         Action = "ping"
)

// Request is one client frame. Data holds the action payload, which has the
// same shape as the body of the matching REST endpoint.
type Request struct {
	Action    Action          `json:"action"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState       Event = "state"
	EventAnswerSaved Event = "answer_saved"
	EventViolation   Event = "violation"
	EventSubmitted   Event = "submitted"
	EventPong        Event = "pong"
	EventError       Event = "error"
)

// Response is one server frame. RequestID echoes the request it answers.
type Response struct {
	Event     Event               `json:"event"`
	RequestID string              `json:"requestId,omitempty"`
	Data      any                 `json:"data,omitempty"`
	Error     *response.ErrorBody `json:"error,omitempty"`
}
