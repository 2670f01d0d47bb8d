package persona

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/db"
	"github.com/anirudhms/vani/internal/language"
	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/quota"
	"github.com/anirudhms/vani/internal/vault"
)

type stubProvider struct {
	content string
	err     error
	lastReq llm.CompletionRequest
	calls   int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

const testModel = "fast-model"

func setupResponder(t *testing.T, provider llm.Provider, ceiling int) *LLMResponder {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	quotas := quota.NewTracker(database, map[string]int{testModel: ceiling})
	return NewLLMResponder(provider, quotas, testModel, zap.NewNop())
}

func TestRespond(t *testing.T) {
	provider := &stubProvider{content: "  Hello Maya!  "}
	r := setupResponder(t, provider, 10)

	reply, err := r.Respond(context.Background(), Context{
		Message:  "hi there",
		Language: language.English,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Text != "Hello Maya!" {
		t.Errorf("Text = %q, want trimmed reply", reply.Text)
	}
	if reply.Language != language.English {
		t.Errorf("Language = %q, want en", reply.Language)
	}
}

func TestRespondUnknownLanguageDefaults(t *testing.T) {
	provider := &stubProvider{content: "ok"}
	r := setupResponder(t, provider, 10)

	reply, err := r.Respond(context.Background(), Context{
		Message:  "???",
		Language: language.Unknown,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Language != language.Default {
		t.Errorf("Language = %q, want default", reply.Language)
	}
}

func TestRespondQuotaExhausted(t *testing.T) {
	provider := &stubProvider{content: "ok"}
	r := setupResponder(t, provider, 0)

	_, err := r.Respond(context.Background(), Context{Message: "hi", Language: language.English})
	var exceeded *quota.ExceededError
	if !errors.As(err, &exceeded) {
		t.Errorf("err = %v, want *quota.ExceededError", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

func TestRespondProviderFailurePropagates(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	r := setupResponder(t, provider, 10)

	_, err := r.Respond(context.Background(), Context{Message: "hi", Language: language.English})
	if err == nil {
		t.Fatal("Respond returned nil error on provider failure")
	}
}

func TestRespondEmptyReplyIsError(t *testing.T) {
	provider := &stubProvider{content: "   "}
	r := setupResponder(t, provider, 10)

	_, err := r.Respond(context.Background(), Context{Message: "hi", Language: language.English})
	if err == nil {
		t.Fatal("Respond accepted an empty reply")
	}
}

func TestPromptIncludesFactsAndHistory(t *testing.T) {
	provider := &stubProvider{content: "ok"}
	r := setupResponder(t, provider, 10)

	_, err := r.Respond(context.Background(), Context{
		UserName: "Maya",
		Message:  "how is everyone",
		Language: language.English,
		History: []Turn{
			{Role: "user", Content: "my mom was sick"},
			{Role: "assistant", Content: "I hope she feels better soon"},
		},
		Facts: []vault.Fact{{
			Entity:    "Mom",
			Relation:  "family",
			Attribute: "health",
			Value:     "recovering",
			Context:   "mom was sick last week",
			Timestamp: time.Now(),
		}},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	userPrompt := provider.lastReq.Messages[1].Content
	for _, want := range []string{"Maya", "recovering", "my mom was sick", "how is everyone"} {
		if !strings.Contains(userPrompt, want) {
			t.Errorf("user prompt missing %q:\n%s", want, userPrompt)
		}
	}
}

func TestGrammarModeOverlay(t *testing.T) {
	provider := &stubProvider{content: "ok"}
	r := setupResponder(t, provider, 10)

	_, err := r.Respond(context.Background(), Context{
		Message:  "he go to school",
		Language: language.English,
		Mode:     ModeGrammar,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(provider.lastReq.Messages[0].Content, "grammar") {
		t.Error("grammar mode did not change the system prompt")
	}

	provider2 := &stubProvider{content: "ok"}
	r2 := setupResponder(t, provider2, 10)
	if _, err := r2.Respond(context.Background(), Context{Message: "hi", Language: language.English}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if strings.Contains(provider2.lastReq.Messages[0].Content, "grammar mistake") {
		t.Error("default mode system prompt contains grammar overlay")
	}
}
