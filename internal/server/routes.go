package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anirudhms/vani/internal/chat"
	"github.com/anirudhms/vani/internal/quota"
)

// chatBody is the POST /api/chat request payload. Callers identify
// themselves by user_id when they already have one, or by session_id for
// anonymous web sessions.
type chatBody struct {
	UserID         string `json:"user_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Mode           string `json:"mode,omitempty"`
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/quota", s.handleQuota)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/context", s.handleUserContext)
			r.Get("/facts", s.handleListFacts)
			r.Delete("/facts", s.handleClearFacts)
		})

		r.Delete("/facts/{factID}", s.handleDeleteFact)
		r.Post("/conversations/{conversationID}/end", s.handleEndConversation)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	userID := body.UserID
	if userID == "" {
		if body.SessionID == "" {
			http.Error(w, "user_id or session_id is required", http.StatusBadRequest)
			return
		}
		user, err := s.service.GetOrCreateUser(r.Context(), 0, body.SessionID, "")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		userID = user.ID
	}

	resp, err := s.service.ProcessMessage(r.Context(), chat.Request{
		UserID:         userID,
		ConversationID: body.ConversationID,
		Message:        body.Message,
		Interface:      "web",
		Mode:           body.Mode,
	})
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeChatError maps quota exhaustion to 429 so clients can back off.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error":    err.Error(),
			"reset_at": exceeded.ResetAt.Format(time.RFC3339),
		})
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	states, err := s.quotas.All(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleUserContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	query := r.URL.Query().Get("q")

	summary, err := s.service.UserContextSummary(r.Context(), userID, query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	facts, err := s.vault.GetAllFacts(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, facts)
}

func (s *Server) handleClearFacts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := s.vault.ClearUserFacts(r.Context(), userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteFact(w http.ResponseWriter, r *http.Request) {
	factID := chi.URLParam(r, "factID")

	if err := s.vault.DeleteFact(r.Context(), factID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	if err := s.service.EndConversation(r.Context(), conversationID); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
