// Package vault gives the conversation pipeline a per-user long-term memory:
// facts are extracted from messages with an LLM, embedded into a vector
// index, and recalled by semantic similarity.
package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/quota"
)

const extractionSystemPrompt = `You are an expert at extracting personal information from conversations.

Your task is to identify and structure facts about:
- People (names, relationships, characteristics)
- Events (dates, activities, plans)
- Preferences (likes, dislikes, habits)
- Emotions (feelings, concerns, worries)
- Projects (work, hobbies, goals)

Return your response in this EXACT JSON format:
{
  "facts": [
    {
      "entity": "Name or thing being discussed",
      "relation": "friend|family|colleague|project|event|preference|emotion",
      "attribute": "Specific characteristic or detail",
      "value": "The value or description",
      "context": "The exact sentence or phrase from the message"
    }
  ]
}

Guidelines:
- Extract ALL meaningful personal information
- Be specific about entities (use actual names)
- Include emotional context when present
- Capture relationships between entities
- If no facts found, return an empty array
- Only extract facts explicitly stated, don't infer`

var extractionSchema = llm.MustCompileSchema(`{
	"type": "object",
	"required": ["facts"],
	"properties": {
		"facts": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["entity", "relation", "attribute", "value"],
				"properties": {
					"entity": {"type": "string"},
					"relation": {"type": "string"},
					"attribute": {"type": "string"},
					"value": {"type": "string"},
					"context": {"type": "string"}
				}
			}
		}
	}
}`)

// historyContext is how many trailing history turns go into the prompt.
const historyContext = 3

// Turn is one prior message included as extraction context.
type Turn struct {
	Role    string
	Content string
}

// Vault extracts facts from messages and recalls them by similarity.
type Vault struct {
	store    *FactStore
	provider llm.Provider
	quotas   *quota.Tracker
	model    string
	logger   *zap.Logger
}

// New creates a Vault. model names the extraction model; its calls are
// counted against that model's daily quota.
func New(store *FactStore, provider llm.Provider, quotas *quota.Tracker, model string, logger *zap.Logger) *Vault {
	return &Vault{
		store:    store,
		provider: provider,
		quotas:   quotas,
		model:    model,
		logger:   logger,
	}
}

// Store exposes the underlying fact store for persistence management.
func (v *Vault) Store() *FactStore { return v.store }

// ExtractFacts pulls structured facts out of a message with the LLM. A
// malformed model response yields an empty list, not an error; quota and
// transport failures are returned so the caller can decide to degrade.
// Returned facts carry fresh ids and timestamps and are NOT stored.
func (v *Vault) ExtractFacts(ctx context.Context, userID, message string, history []Turn) ([]Fact, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil
	}

	if _, err := v.quotas.CheckAndIncrement(ctx, v.model); err != nil {
		return nil, err
	}

	resp, err := v.provider.Complete(ctx, llm.CompletionRequest{
		Model: v.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractionSystemPrompt},
			{Role: llm.RoleUser, Content: extractionPrompt(message, history)},
		},
		MaxTokens:   1000,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	return v.parseFacts(userID, message, resp.Content), nil
}

// StoreFact embeds and stores one fact. Unlike extraction, a storage
// failure propagates: it means visible loss of memory.
func (v *Vault) StoreFact(ctx context.Context, fact Fact) error {
	return v.store.Add(ctx, fact)
}

// RetrieveContext returns up to topK facts relevant to the query, scoped to
// the user.
func (v *Vault) RetrieveContext(ctx context.Context, query, userID string, topK int) ([]Fact, error) {
	return v.store.Search(ctx, query, userID, topK)
}

// GetAllFacts returns up to limit stored facts for the user.
func (v *Vault) GetAllFacts(ctx context.Context, userID string, limit int) ([]Fact, error) {
	return v.store.All(ctx, userID, limit)
}

// DeleteFact removes one fact by id.
func (v *Vault) DeleteFact(ctx context.Context, id string) error {
	return v.store.Delete(ctx, id)
}

// ClearUserFacts removes every fact stored for the user.
func (v *Vault) ClearUserFacts(ctx context.Context, userID string) error {
	return v.store.Clear(ctx, userID)
}

// EntityRelationships builds the relationship graph for one entity from the
// user's stored facts. Entity names compare case-insensitively.
func (v *Vault) EntityRelationships(ctx context.Context, userID, entity string) (*EntityGraph, error) {
	facts, err := v.store.All(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	graph := &EntityGraph{
		Entity:        entity,
		Relationships: make(map[string][]string),
		Attributes:    make(map[string]string),
	}

	for _, fact := range facts {
		if !strings.EqualFold(fact.Entity, entity) {
			continue
		}
		if !contains(graph.Relationships[fact.Relation], fact.Value) {
			graph.Relationships[fact.Relation] = append(graph.Relationships[fact.Relation], fact.Value)
		}
		graph.Attributes[fact.Attribute] = fact.Value
	}

	return graph, nil
}

// parseFacts decodes the extraction response into Fact values. Anything the
// schema rejects degrades to an empty list: extraction is best-effort and
// must never block the conversation.
func (v *Vault) parseFacts(userID, message, content string) []Fact {
	var out struct {
		Facts []struct {
			Entity    string `json:"entity"`
			Relation  string `json:"relation"`
			Attribute string `json:"attribute"`
			Value     string `json:"value"`
			Context   string `json:"context"`
		} `json:"facts"`
	}

	if err := llm.DecodeJSON(content, extractionSchema, &out); err != nil {
		v.logger.Warn("fact extraction response unusable",
			zap.Error(err),
			zap.String("user_id", userID))
		return nil
	}

	now := time.Now().UTC()
	facts := make([]Fact, 0, len(out.Facts))
	for _, ef := range out.Facts {
		factContext := ef.Context
		if factContext == "" {
			factContext = message
		}
		facts = append(facts, Fact{
			ID:        uuid.New().String(),
			UserID:    userID,
			Entity:    ef.Entity,
			Relation:  ef.Relation,
			Attribute: ef.Attribute,
			Value:     ef.Value,
			Context:   factContext,
			Timestamp: now,
		})
	}
	return facts
}

func extractionPrompt(message string, history []Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract personal facts from this message:\n\n%q\n", message)

	if len(history) > 0 {
		start := len(history) - historyContext
		if start < 0 {
			start = 0
		}
		b.WriteString("\nRecent conversation context:\n")
		for _, turn := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}

	b.WriteString("\nProvide extracted facts in the JSON format specified.")
	return b.String()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
