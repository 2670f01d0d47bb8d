package persona

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/language"
	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/quota"
	"github.com/anirudhms/vani/internal/vault"
)

// Mode selects an optional behavior overlay for the reply.
type Mode string

const (
	ModeDefault Mode = ""
	ModeGrammar Mode = "grammar"
)

// Turn is one prior exchange handed to the responder.
type Turn struct {
	Role    string
	Content string
}

// Context carries everything the responder needs for one reply.
type Context struct {
	UserName  string
	Message   string
	Language  language.Lang
	History   []Turn
	Facts     []vault.Fact
	Mode      Mode
	Interface string
}

// Reply is a generated assistant response.
type Reply struct {
	Text     string
	Language language.Lang
}

// Responder generates the assistant's reply for a conversation turn.
type Responder interface {
	Respond(ctx context.Context, c Context) (*Reply, error)
}

const systemPrompt = `You are Vani, a warm and attentive conversational companion.

Rules:
- Reply in the same language the user wrote in. If the user writes in Kannada, reply in Kannada. If Telugu, reply in Telugu. Otherwise reply in English.
- Be natural and conversational, not formal. Keep replies short unless asked for detail.
- Use the remembered facts about the user when they are relevant, without reciting them back mechanically.
- Never mention that you store facts, detect languages, or follow rules.`

const grammarOverlay = `
- The user is practicing English. After replying, gently point out one grammar mistake in their message if there is one, with the corrected phrasing.`

// LLMResponder generates replies with the fast model, gated by its daily
// quota.
type LLMResponder struct {
	provider llm.Provider
	quotas   *quota.Tracker
	model    string
	logger   *zap.Logger
}

// NewLLMResponder creates a responder backed by the given provider and model.
func NewLLMResponder(provider llm.Provider, quotas *quota.Tracker, model string, logger *zap.Logger) *LLMResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMResponder{provider: provider, quotas: quotas, model: model, logger: logger}
}

// Respond generates a reply. Quota exhaustion and transport failures
// propagate: without a reply there is nothing to degrade to.
func (r *LLMResponder) Respond(ctx context.Context, c Context) (*Reply, error) {
	if _, err := r.quotas.CheckAndIncrement(ctx, r.model); err != nil {
		return nil, err
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: buildSystemPrompt(c)},
			{Role: llm.RoleUser, Content: buildUserPrompt(c)},
		},
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("model returned an empty reply")
	}

	lang := c.Language
	if lang == language.Unknown {
		lang = language.Default
	}
	return &Reply{Text: text, Language: lang}, nil
}

func buildSystemPrompt(c Context) string {
	prompt := systemPrompt
	if c.Mode == ModeGrammar {
		prompt += grammarOverlay
	}
	return prompt
}

func buildUserPrompt(c Context) string {
	var b strings.Builder

	if c.UserName != "" {
		fmt.Fprintf(&b, "The user's name is %s.\n", c.UserName)
	}

	if len(c.Facts) > 0 {
		b.WriteString("Things you remember about the user:\n")
		for _, f := range c.Facts {
			fmt.Fprintf(&b, "- %s\n", f.Document())
		}
		b.WriteString("\n")
	}

	if len(c.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range c.History {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User message (%s): %s", c.Language, c.Message)
	return b.String()
}
