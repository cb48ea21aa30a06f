package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/proctorhub/assessment-backend/internal/response"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds client silence; clients ping well inside it.
	readWait = 5 * time.Minute
	// MaxMessageSize fits the largest code answer plus framing.
	MaxMessageSize = 256 << 10
)

// Prepare applies read limits to a freshly upgraded connection.
func Prepare(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageSize)
}

// WriteEvent sends one server frame.
func WriteEvent(conn *websocket.Conn, event Event, requestID string, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Response{Event: event, RequestID: requestID, Data: data})
}

// WriteError sends an error frame.
func WriteError(conn *websocket.Conn, requestID string, body *response.ErrorBody) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Response{Event: EventError, RequestID: requestID, Error: body})
}

// ReadRequest reads and decodes one client frame, extending the read deadline.
func ReadRequest(conn *websocket.Conn) (Request, error) {
	var req Request
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	err := conn.ReadJSON(&req)
	return req, err
}
