package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/chat"
	"github.com/anirudhms/vani/internal/quota"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type           string `json:"type"`       // "message"
	SessionID      string `json:"session_id"` // identifies the web user
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	Mode           string `json:"mode,omitempty"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type           string `json:"type"` // "response" or "error"
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	Language       string `json:"language,omitempty"`
	FactsExtracted int    `json:"facts_extracted,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendWSError(conn, "", "invalid message format")
			continue
		}

		if req.Content == "" {
			s.sendWSError(conn, req.ConversationID, "content is required")
			continue
		}
		if req.SessionID == "" {
			s.sendWSError(conn, req.ConversationID, "session_id is required")
			continue
		}

		switch req.Type {
		case "message":
			s.handleWSMessage(conn, r, req)
		default:
			s.sendWSError(conn, req.ConversationID, "unknown message type: "+req.Type)
		}
	}
}

func (s *Server) handleWSMessage(conn *websocket.Conn, r *http.Request, req wsRequest) {
	ctx := r.Context()

	user, err := s.service.GetOrCreateUser(ctx, 0, req.SessionID, "")
	if err != nil {
		s.sendWSError(conn, req.ConversationID, "failed to resolve user: "+err.Error())
		return
	}

	resp, err := s.service.ProcessMessage(ctx, chat.Request{
		UserID:         user.ID,
		ConversationID: req.ConversationID,
		Message:        req.Content,
		Interface:      "web",
		Mode:           req.Mode,
	})
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			s.sendWSError(conn, req.ConversationID, err.Error())
			return
		}
		s.sendWSError(conn, req.ConversationID, "processing failed: "+err.Error())
		return
	}

	s.sendWSResponse(conn, wsResponse{
		Type:           "response",
		ConversationID: resp.ConversationID,
		Content:        resp.Text,
		Language:       string(resp.Language),
		FactsExtracted: resp.FactsExtracted,
	})
}

func (s *Server) sendWSResponse(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}

func (s *Server) sendWSError(conn *websocket.Conn, conversationID, message string) {
	resp := wsResponse{
		Type:           "error",
		ConversationID: conversationID,
		Content:        message,
	}
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}
