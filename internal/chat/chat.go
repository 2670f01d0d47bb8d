package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/language"
	"github.com/anirudhms/vani/internal/persona"
	"github.com/anirudhms/vani/internal/store"
	"github.com/anirudhms/vani/internal/vault"
)

// Request is one incoming user message with routing metadata.
type Request struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Interface      string `json:"interface,omitempty"`
	Mode           string `json:"mode,omitempty"`
}

// Response is the assistant's reply plus pipeline metadata.
type Response struct {
	Text           string        `json:"text"`
	Language       language.Lang `json:"language"`
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	FactsExtracted int           `json:"facts_extracted"`
}

// Options tunes the conversation pipeline.
type Options struct {
	HistoryWindow int
	RetrieveTopK  int
}

// Service runs the conversation pipeline: detect language, remember facts,
// recall relevant ones, generate the reply and persist the exchange.
type Service struct {
	store     *store.Store
	detector  *language.Detector
	vault     *vault.Vault
	responder persona.Responder
	opts      Options
	logger    *zap.Logger
}

// NewService wires the pipeline together.
func NewService(s *store.Store, detector *language.Detector, v *vault.Vault, responder persona.Responder, opts Options, logger *zap.Logger) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.RetrieveTopK <= 0 {
		opts.RetrieveTopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, detector: detector, vault: v, responder: responder, opts: opts, logger: logger}
}

// ProcessMessage runs one turn through the pipeline. Memory failures degrade
// (the reply still happens, just without new or recalled facts); reply
// generation and persistence failures propagate.
func (s *Service) ProcessMessage(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("empty message")
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %s", req.UserID)
	}

	detected := s.detector.Detect(ctx, req.Message)

	conversation, err := s.getOrCreateConversation(ctx, user.ID, req.ConversationID, req.Interface)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetMessages(ctx, conversation.ID, s.opts.HistoryWindow)
	if err != nil {
		return nil, err
	}

	factsExtracted := s.rememberFacts(ctx, user.ID, req.Message, history)

	facts, err := s.vault.RetrieveContext(ctx, req.Message, user.ID, s.opts.RetrieveTopK)
	if err != nil {
		s.logger.Warn("fact retrieval failed, replying without recalled context",
			zap.Error(err),
			zap.String("user_id", user.ID))
		facts = nil
	}

	reply, err := s.responder.Respond(ctx, persona.Context{
		UserName:  user.Name,
		Message:   req.Message,
		Language:  detected.Language,
		History:   personaHistory(history),
		Facts:     facts,
		Mode:      persona.Mode(req.Mode),
		Interface: req.Interface,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.AppendMessage(ctx, store.Message{
		ConversationID: conversation.ID,
		Role:           store.RoleUser,
		Content:        req.Message,
		Language:       string(detected.Language),
	}); err != nil {
		return nil, err
	}
	assistantMsg, err := s.store.AppendMessage(ctx, store.Message{
		ConversationID: conversation.ID,
		Role:           store.RoleAssistant,
		Content:        reply.Text,
		Language:       string(reply.Language),
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchUser(ctx, user.ID); err != nil {
		s.logger.Warn("updating last-active timestamp failed", zap.Error(err))
	}

	return &Response{
		Text:           reply.Text,
		Language:       reply.Language,
		ConversationID: conversation.ID,
		MessageID:      assistantMsg.ID,
		FactsExtracted: factsExtracted,
	}, nil
}

// rememberFacts extracts facts from the message and stores them. Extraction
// is best-effort: any failure is logged and the turn continues with zero
// new facts.
func (s *Service) rememberFacts(ctx context.Context, userID, message string, history []store.Message) int {
	facts, err := s.vault.ExtractFacts(ctx, userID, message, vaultHistory(history))
	if err != nil {
		s.logger.Warn("fact extraction skipped",
			zap.Error(err),
			zap.String("user_id", userID))
		return 0
	}

	stored := 0
	for _, f := range facts {
		if err := s.vault.StoreFact(ctx, f); err != nil {
			s.logger.Warn("storing extracted fact failed",
				zap.Error(err),
				zap.String("entity", f.Entity))
			continue
		}
		stored++
	}
	return stored
}

func (s *Service) getOrCreateConversation(ctx context.Context, userID, conversationID, iface string) (*store.Conversation, error) {
	if conversationID != "" {
		c, err := s.store.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if c != nil && c.UserID == userID && c.EndedAt == nil {
			return c, nil
		}
		// Unknown, foreign or ended conversation ids fall through to a
		// fresh conversation rather than erroring.
	}
	return s.store.CreateConversation(ctx, userID, store.Interface(iface))
}

// GetOrCreateUser resolves a user by external handle, creating one on first
// contact. Exactly one of telegramID and sessionID must be set.
func (s *Service) GetOrCreateUser(ctx context.Context, telegramID int64, sessionID, name string) (*store.User, error) {
	switch {
	case telegramID != 0 && sessionID != "":
		return nil, fmt.Errorf("user handle must be telegram id or session id, not both")
	case telegramID != 0:
		u, err := s.store.GetUserByTelegramID(ctx, telegramID)
		if err != nil || u != nil {
			return u, err
		}
		return s.store.CreateUser(ctx, store.User{TelegramID: telegramID, Name: name})
	case sessionID != "":
		u, err := s.store.GetUserBySessionID(ctx, sessionID)
		if err != nil || u != nil {
			return u, err
		}
		return s.store.CreateUser(ctx, store.User{SessionID: sessionID, Name: name})
	default:
		return nil, fmt.Errorf("user handle required")
	}
}

// EndConversation closes an active conversation.
func (s *Service) EndConversation(ctx context.Context, conversationID string) error {
	return s.store.EndConversation(ctx, conversationID)
}

// History returns the last limit messages of a conversation in
// chronological order.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	return s.store.GetMessages(ctx, conversationID, limit)
}

// ExtractAndStore runs fact extraction on a standalone message and stores
// the results, outside of any conversation turn.
func (s *Service) ExtractAndStore(ctx context.Context, userID, message string) ([]vault.Fact, error) {
	facts, err := s.vault.ExtractFacts(ctx, userID, message, nil)
	if err != nil {
		return nil, err
	}
	for _, f := range facts {
		if err := s.vault.StoreFact(ctx, f); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

// ContextSummary groups what the assistant remembers about a user by
// entity.
type ContextSummary struct {
	UserID   string              `json:"user_id"`
	Facts    int                 `json:"facts"`
	Entities map[string][]string `json:"entities"`
}

// UserContextSummary summarizes what is remembered about the user. With a
// non-empty query only the facts most relevant to it are included; otherwise
// everything is.
func (s *Service) UserContextSummary(ctx context.Context, userID, query string) (*ContextSummary, error) {
	var facts []vault.Fact
	var err error
	if query != "" {
		facts, err = s.vault.RetrieveContext(ctx, query, userID, s.opts.RetrieveTopK)
	} else {
		facts, err = s.vault.GetAllFacts(ctx, userID, 0)
	}
	if err != nil {
		return nil, err
	}

	summary := &ContextSummary{
		UserID:   userID,
		Facts:    len(facts),
		Entities: make(map[string][]string),
	}
	for _, f := range facts {
		line := fmt.Sprintf("%s %s: %s", f.Relation, f.Attribute, f.Value)
		summary.Entities[f.Entity] = append(summary.Entities[f.Entity], line)
	}
	for _, lines := range summary.Entities {
		sort.Strings(lines)
	}
	return summary, nil
}

func personaHistory(messages []store.Message) []persona.Turn {
	turns := make([]persona.Turn, len(messages))
	for i, m := range messages {
		turns[i] = persona.Turn{Role: string(m.Role), Content: m.Content}
	}
	return turns
}

func vaultHistory(messages []store.Message) []vault.Turn {
	turns := make([]vault.Turn, len(messages))
	for i, m := range messages {
		turns[i] = vault.Turn{Role: string(m.Role), Content: m.Content}
	}
	return turns
}
