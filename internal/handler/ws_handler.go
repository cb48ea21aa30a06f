package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/proctorhub/assessment-backend/internal/validator"
	ws "github.com/proctorhub/assessment-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
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

// WSHandler serves the attempt stream: the same operations as the REST
// endpoints over one long-lived connection.
type WSHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/assessment/:attemptId/stream?token=...
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims, attemptID, ok := attemptRequest(c)
	if !ok {
		return
	}
	candidateID := claims.UserID

	// Resolve ownership before upgrading so unknown attempts get a plain 404.
	state, err := h.attempts.GetState(c.Request.Context(), attemptID, candidateID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	wsLog := h.log.With().
		Str("attempt_id", attemptID.String()).
		Str("candidate_id", candidateID.String()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	if err := ws.WriteEvent(conn, ws.EventState, "", state); err != nil {
		return
	}

	// The request context ends when the client goes away.
	ctx := c.Request.Context()
	for {
		req, err := ws.ReadRequest(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if err := h.dispatch(ctx, conn, wsLog, attemptID, candidateID, req); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing")
			return
		}
	}
}

// dispatch runs one client action. The returned error is a write failure;
// operation errors are reported to the client as error frames.
func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, attemptID, candidateID uuid.UUID, req ws.Request) error {
	switch req.Action {
	case ws.ActionPing:
		return ws.WriteEvent(conn, ws.EventPong, req.RequestID, nil)

	case ws.ActionAnswer:
		var body model.SubmitAnswerRequest
		if fields := decodeFrame(req.Data, &body); fields != nil {
			return writeValidation(conn, req.RequestID, fields)
		}
		if err := h.attempts.SubmitAnswer(ctx, attemptID, candidateID, body.ToAnswer()); err != nil {
			return h.writeServiceError(conn, wsLog, req.RequestID, err)
		}
		return ws.WriteEvent(conn, ws.EventAnswerSaved, req.RequestID, gin.H{
			"questionId": body.QuestionID,
			"message":    "Answer saved",
		})

	case ws.ActionProctorEvent:
		var body model.ProctorEventRequest
		if fields := decodeFrame(req.Data, &body); fields != nil {
			return writeValidation(conn, req.RequestID, fields)
		}
		outcome, err := h.attempts.RecordViolation(ctx, attemptID, candidateID, model.ViolationType(body.Type))
		if err != nil {
			return h.writeServiceError(conn, wsLog, req.RequestID, err)
		}
		return ws.WriteEvent(conn, ws.EventViolation, req.RequestID, outcome)

	case ws.ActionSubmit:
		result, err := h.attempts.Submit(ctx, attemptID, candidateID)
		if err != nil {
			return h.writeServiceError(conn, wsLog, req.RequestID, err)
		}
		return ws.WriteEvent(conn, ws.EventSubmitted, req.RequestID, result)

	default:
		wsLog.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		body := response.NewErrorBody(response.ErrInvalidPayload)
		body.Message = "unknown action: " + string(req.Action)
		return ws.WriteError(conn, req.RequestID, body)
	}
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, wsLog zerolog.Logger, requestID string, err error) error {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("Stream action failed")
	}
	return ws.WriteError(conn, requestID, body)
}

func writeValidation(conn *websocket.Conn, requestID string, fields map[string]string) error {
	return ws.WriteError(conn, requestID, response.NewErrorBody(response.ErrValidation, response.WithFields(fields)))
}

// decodeFrame unmarshals an action payload and validates it like a REST body.
func decodeFrame(raw json.RawMessage, dst any) map[string]string {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return map[string]string{"detail": err.Error()}
	}
	return validator.Struct(dst)
}
