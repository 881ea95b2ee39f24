package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/michaelbrown/pylearn/internal/api"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the JSON API
	},
}

const (
	wsTypeExecute = "execute"
	wsTypeResult  = "result"
	wsTypeError   = "error"
)

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type    string  `json:"type"`
	Output  *string `json:"output,omitempty"`
	Error   string  `json:"error,omitempty"`
	Content string  `json:"content,omitempty"`
}

// handleExecuteWebSocket runs one execution per incoming message, in order.
func (s *Server) handleExecuteWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(api.MaxBodyBytes)

	// Read loop
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if isDecodeError(err) {
				s.wsWriteJSON(conn, wsOutgoing{Type: wsTypeError, Content: "invalid message"})
				continue
			}
			s.logger.Debug("websocket read error", slog.String("error", err.Error()))
			return
		}

		if msg.Type != wsTypeExecute {
			s.wsWriteJSON(conn, wsOutgoing{Type: wsTypeError, Content: "invalid message"})
			continue
		}

		res, err := s.executor.Execute(r.Context(), msg.Code)
		if err != nil {
			status, text := executeErrorStatus(err)
			if status == http.StatusInternalServerError {
				s.logger.Error("websocket execute failed", slog.String("error", err.Error()))
			}
			s.wsWriteJSON(conn, wsOutgoing{Type: wsTypeError, Content: text})
			continue
		}

		out := res.Output
		s.wsWriteJSON(conn, wsOutgoing{Type: wsTypeResult, Output: &out, Error: res.Error})
	}
}

func (s *Server) wsWriteJSON(conn *websocket.Conn, v wsOutgoing) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("websocket marshal error", slog.String("error", err.Error()))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("websocket write error", slog.String("error", err.Error()))
	}
}

// isDecodeError reports whether err came from a well-framed message that
// was not valid JSON for wsIncoming. The connection stays usable.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
