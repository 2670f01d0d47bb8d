package chat

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/db"
	"github.com/anirudhms/vani/internal/language"
	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/persona"
	"github.com/anirudhms/vani/internal/quota"
	"github.com/anirudhms/vani/internal/store"
	"github.com/anirudhms/vani/internal/vault"
)

type stubEmbedder struct{}

func (stubEmbedder) Name() string    { return "stub" }
func (stubEmbedder) Dimensions() int { return 8 }

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 8)
		for j := 0; j < len(text); j++ {
			vec[j%8] += float32(text[j])
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		out[i] = vec
	}
	return out, nil
}

type stubProvider struct {
	content string
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

type stubResponder struct {
	reply   *persona.Reply
	err     error
	lastCtx persona.Context
	calls   int
}

func (s *stubResponder) Respond(ctx context.Context, c persona.Context) (*persona.Reply, error) {
	s.calls++
	s.lastCtx = c
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

const (
	fastModel = "fast-model"
	deepModel = "deep-model"
)

type fixture struct {
	service   *Service
	store     *store.Store
	vault     *vault.Vault
	extractor *stubProvider
	responder *stubResponder
}

func setupService(t *testing.T, deepCeiling int) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	quotas := quota.NewTracker(database, map[string]int{fastModel: 1000, deepModel: deepCeiling})
	st := store.NewStore(database)

	detectorProvider := &stubProvider{content: `{"language": "en", "confidence": 0.9}`}
	detector := language.NewDetector(detectorProvider, quotas, fastModel, language.DefaultThresholds(), zap.NewNop())

	factStore, err := vault.NewFactStore(stubEmbedder{})
	if err != nil {
		t.Fatalf("NewFactStore: %v", err)
	}
	extractor := &stubProvider{content: `{"facts": [{"entity": "Mom", "relation": "family", "attribute": "health", "value": "recovering", "context": "mom is recovering"}]}`}
	v := vault.New(factStore, extractor, quotas, deepModel, zap.NewNop())

	responder := &stubResponder{reply: &persona.Reply{Text: "Glad to hear it!", Language: language.English}}

	service := NewService(st, detector, v, responder, Options{HistoryWindow: 4, RetrieveTopK: 5}, zap.NewNop())
	return &fixture{service: service, store: st, vault: v, extractor: extractor, responder: responder}
}

func createUser(t *testing.T, f *fixture) *store.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), store.User{SessionID: "sess", Name: "Maya"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestProcessMessage(t *testing.T) {
	f := setupService(t, 100)
	ctx := context.Background()
	u := createUser(t, f)

	resp, err := f.service.ProcessMessage(ctx, Request{
		UserID:  u.ID,
		Message: "my mom is recovering well",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if resp.Text != "Glad to hear it!" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Language != language.English {
		t.Errorf("Language = %q, want en", resp.Language)
	}
	if resp.ConversationID == "" || resp.MessageID == "" {
		t.Errorf("missing ids in response: %+v", resp)
	}
	if resp.FactsExtracted != 1 {
		t.Errorf("FactsExtracted = %d, want 1", resp.FactsExtracted)
	}

	// Both turns persisted in order.
	messages, err := f.store.GetMessages(ctx, resp.ConversationID, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(messages))
	}
	if messages[0].Role != store.RoleUser || messages[1].Role != store.RoleAssistant {
		t.Errorf("roles = %q, %q", messages[0].Role, messages[1].Role)
	}

	// The extracted fact landed in the vault.
	facts, err := f.vault.GetAllFacts(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("GetAllFacts: %v", err)
	}
	if len(facts) != 1 || facts[0].Entity != "Mom" {
		t.Errorf("stored facts = %+v", facts)
	}
}

func TestProcessMessageContinuesConversation(t *testing.T) {
	f := setupService(t, 100)
	ctx := context.Background()
	u := createUser(t, f)

	first, err := f.service.ProcessMessage(ctx, Request{UserID: u.ID, Message: "hello there"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	second, err := f.service.ProcessMessage(ctx, Request{
		UserID:         u.ID,
		ConversationID: first.ConversationID,
		Message:        "how are you",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation changed: %s -> %s", first.ConversationID, second.ConversationID)
	}

	// Prior turns are handed to the responder.
	if len(f.responder.lastCtx.History) != 2 {
		t.Errorf("responder saw %d history turns, want 2", len(f.responder.lastCtx.History))
	}
}

func TestProcessMessageUnknownConversationStartsFresh(t *testing.T) {
	f := setupService(t, 100)
	ctx := context.Background()
	u := createUser(t, f)

	resp, err := f.service.ProcessMessage(ctx, Request{
		UserID:         u.ID,
		ConversationID: "does-not-exist",
		Message:        "hello",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.ConversationID == "does-not-exist" {
		t.Error("unknown conversation id was not replaced")
	}
}

func TestProcessMessageExtractionQuotaDegrades(t *testing.T) {
	f := setupService(t, 0)
	ctx := context.Background()
	u := createUser(t, f)

	resp, err := f.service.ProcessMessage(ctx, Request{UserID: u.ID, Message: "my mom is recovering"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.FactsExtracted != 0 {
		t.Errorf("FactsExtracted = %d, want 0", resp.FactsExtracted)
	}
	if resp.Text == "" {
		t.Error("reply missing despite extraction degradation")
	}
	if f.extractor.calls != 0 {
		t.Errorf("extraction provider called %d times with quota exhausted", f.extractor.calls)
	}
}

func TestProcessMessageExtractionFailureDegrades(t *testing.T) {
	f := setupService(t, 100)
	f.extractor.err = errors.New("upstream down")
	ctx := context.Background()
	u := createUser(t, f)

	resp, err := f.service.ProcessMessage(ctx, Request{UserID: u.ID, Message: "hello"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.FactsExtracted != 0 {
		t.Errorf("FactsExtracted = %d, want 0", resp.FactsExtracted)
	}
}

func TestProcessMessageResponderFailurePersistsNothing(t *testing.T) {
	f := setupService(t, 100)
	f.responder.err = errors.New("model unavailable")
	ctx := context.Background()
	u := createUser(t, f)

	_, err := f.service.ProcessMessage(ctx, Request{UserID: u.ID, Message: "hello"})
	if err == nil {
		t.Fatal("ProcessMessage succeeded despite responder failure")
	}

	conversations, err := f.store.UserConversations(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("UserConversations: %v", err)
	}
	for _, c := range conversations {
		messages, err := f.store.GetMessages(ctx, c.ID, 0)
		if err != nil {
			t.Fatalf("GetMessages: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("conversation %s has %d persisted messages after failed turn", c.ID, len(messages))
		}
	}
}

func TestProcessMessageUnknownUser(t *testing.T) {
	f := setupService(t, 100)

	_, err := f.service.ProcessMessage(context.Background(), Request{UserID: "ghost", Message: "hi"})
	if err == nil {
		t.Fatal("ProcessMessage accepted unknown user")
	}
}

func TestProcessMessageEmptyMessage(t *testing.T) {
	f := setupService(t, 100)
	u := createUser(t, f)

	_, err := f.service.ProcessMessage(context.Background(), Request{UserID: u.ID, Message: "   "})
	if err == nil {
		t.Fatal("ProcessMessage accepted empty message")
	}
}

func TestGetOrCreateUser(t *testing.T) {
	f := setupService(t, 100)
	ctx := context.Background()

	first, err := f.service.GetOrCreateUser(ctx, 42, "", "Maya")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	again, err := f.service.GetOrCreateUser(ctx, 42, "", "Maya")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if first.ID != again.ID {
		t.Errorf("repeat lookup created a new user: %s vs %s", first.ID, again.ID)
	}

	web, err := f.service.GetOrCreateUser(ctx, 0, "sess-1", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if web.ID == first.ID {
		t.Error("web user collided with telegram user")
	}

	if _, err := f.service.GetOrCreateUser(ctx, 1, "sess-2", ""); err == nil {
		t.Error("both handles accepted")
	}
	if _, err := f.service.GetOrCreateUser(ctx, 0, "", ""); err == nil {
		t.Error("no handle accepted")
	}
}

func TestUserContextSummary(t *testing.T) {
	f := setupService(t, 100)
	ctx := context.Background()
	u := createUser(t, f)

	if _, err := f.service.ProcessMessage(ctx, Request{UserID: u.ID, Message: "my mom is recovering"}); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	summary, err := f.service.UserContextSummary(ctx, u.ID, "")
	if err != nil {
		t.Fatalf("UserContextSummary: %v", err)
	}
	if summary.Facts != 1 {
		t.Errorf("Facts = %d, want 1", summary.Facts)
	}
	if len(summary.Entities["Mom"]) != 1 {
		t.Errorf("Entities = %+v", summary.Entities)
	}

	queried, err := f.service.UserContextSummary(ctx, u.ID, "how is mom doing")
	if err != nil {
		t.Fatalf("UserContextSummary with query: %v", err)
	}
	if queried.Facts != 1 {
		t.Errorf("queried Facts = %d, want 1", queried.Facts)
	}
}

func TestExtractAndStore(t *testing.T) {
	f := setupService(t, 100)
	ctx := context.Background()
	u := createUser(t, f)

	facts, err := f.service.ExtractAndStore(ctx, u.ID, "my mom is recovering")
	if err != nil {
		t.Fatalf("ExtractAndStore: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("extracted %d facts, want 1", len(facts))
	}

	stored, err := f.vault.GetAllFacts(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("GetAllFacts: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored %d facts, want 1", len(stored))
	}
}
