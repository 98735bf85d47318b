package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valleyboyzz0024-del/ara-voice/internal/command"
	"github.com/valleyboyzz0024-del/ara-voice/internal/protocol"
)

const wsReadDeadline = 120 * time.Second

// handleCommandWS holds one socket per voice client: inbound transcripts,
// outbound command results. Handling is synchronous per message, so writes
// stay single-threaded.
func (s *Server) handleCommandWS(w http.ResponseWriter, r *http.Request) {
	sessionID := orDefault(r.URL.Query().Get("session_id"))
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "orchestrator not configured", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.countSessionEvent("ws_connected")
	defer s.countSessionEvent("ws_disconnected")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWS(conn, sessionID, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			}, protocol.TypeErrorEvent)
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientTranscript:
			s.countWSMessage("inbound", protocol.TypeClientTranscript)
			sid := sessionID
			if strings.TrimSpace(msg.SessionID) != "" {
				sid = msg.SessionID
			}
			s.handleWSTranscript(r, conn, sid, msg)
		case protocol.ClientControl:
			s.countWSMessage("inbound", protocol.TypeClientControl)
			sid := sessionID
			if strings.TrimSpace(msg.SessionID) != "" {
				sid = msg.SessionID
			}
			s.handleWSControl(conn, sid, msg)
		}
	}
}

func (s *Server) handleWSTranscript(r *http.Request, conn *websocket.Conn, sessionID string, msg protocol.ClientTranscript) {
	text, err := s.authorize(r, sessionID, msg.Text)
	if err == nil {
		var res command.Result
		if msg.Mode == protocol.ModeStructured {
			res, err = s.orchestrator.HandleStructured(r.Context(), sessionID, text)
		} else {
			res, err = s.orchestrator.HandleFreeform(r.Context(), sessionID, text)
		}
		if err == nil {
			s.observeSessions()
			s.writeWS(conn, sessionID, protocol.CommandResult{
				Type:      protocol.TypeCommandResult,
				SessionID: sessionID,
				Kind:      res.Type,
				Reply:     res.Reply,
				Tab:       res.Tab,
				Warnings:  res.Warnings,
				TSMs:      time.Now().UnixMilli(),
			}, protocol.TypeCommandResult)
			return
		}
	}

	_, message, _ := classifyError(err)
	var cerr *command.Error
	code := "command_failed"
	retryable := false
	if errors.As(err, &cerr) {
		code = string(cerr.Kind)
		retryable = cerr.Retryable
	}
	s.writeWS(conn, sessionID, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Retryable: retryable,
		Detail:    message,
	}, protocol.TypeErrorEvent)
}

func (s *Server) handleWSControl(conn *websocket.Conn, sessionID string, msg protocol.ClientControl) {
	switch msg.Action {
	case "clear_session":
		s.sessions.Clear(sessionID)
		s.countSessionEvent("cleared")
		s.writeWS(conn, sessionID, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: sessionID,
			Code:      "session_cleared",
		}, protocol.TypeSystemEvent)
	default:
		s.writeWS(conn, sessionID, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "unsupported_action",
			Detail:    msg.Action,
		}, protocol.TypeErrorEvent)
	}
}

func (s *Server) writeWS(conn *websocket.Conn, sessionID string, msg any, t protocol.MessageType) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Printf("ws write failed for session %s: %v", sessionID, err)
		return
	}
	s.countWSMessage("outbound", t)
}

func (s *Server) countWSMessage(direction string, t protocol.MessageType) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
	}
}

func (s *Server) countSessionEvent(event string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}
