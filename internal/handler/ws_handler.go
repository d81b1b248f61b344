package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/service"
	ws "github.com/sanjio/sanjio/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the websocket autosave stream of a running attempt.
type WSHandler struct {
	examService    ExamService
	attemptService AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService ExamService, attemptService AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService:    examService,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream?token=
// Upgrades to WebSocket for answer autosave.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	userID, ok := profileID(c)
	if !ok {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	// Validate before upgrading so failures are plain HTTP errors.
	p, err := h.attemptService.VerifyInProgress(ctx, attemptID, userID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	paper, err := h.examService.Paper(ctx, p.ExamID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	optionCount := make(map[string]int, len(paper))
	for _, q := range paper {
		optionCount[q.ID] = len(q.Options)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", userID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	// The request context ends with the hijacked connection's handler.
	saveCtx := context.WithoutCancel(ctx)

	for {
		var msg ws.AutosaveRequest
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			if done := h.handleAutosave(saveCtx, conn, wsLog, p, optionCount, &msg); done {
				return
			}
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave validates and records one answer change. It reports true
// when the attempt is no longer running and the stream should end.
func (h *WSHandler) handleAutosave(
	ctx context.Context,
	conn *websocket.Conn,
	wsLog zerolog.Logger,
	p *model.Participation,
	optionCount map[string]int,
	msg *ws.AutosaveRequest,
) bool {
	options, ok := optionCount[msg.QID]
	if !ok {
		_ = ws.WriteError(conn, "q_id is not on this exam")
		return false
	}
	if msg.Answer < 0 || msg.Answer > options {
		_ = ws.WriteError(conn, "ans is out of range")
		return false
	}

	if err := h.attemptService.RecordAnswer(ctx, p, msg.QID, msg.Answer); err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptFinished):
			_ = ws.WriteError(conn, response.GetMessage(response.ErrAttemptFinished))
			return true
		case errors.Is(err, service.ErrAttemptTimeUp):
			_ = ws.WriteError(conn, response.GetMessage(response.ErrAttemptTimeUp))
			return true
		}
		wsLog.Error().Err(err).Str("q_id", msg.QID).Msg("Autosave error")
		_ = ws.WriteError(conn, "save failed")
		return false
	}

	_ = ws.WriteTyped(conn, ws.AutosaveResponse{
		Event:  ws.EventSuccess,
		QID:    msg.QID,
		Status: "saved",
	})
	return false
}
