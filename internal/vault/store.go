package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/anirudhms/vani/internal/embeddings"
)

const collectionName = "user_facts"

// indexFileName is the on-disk snapshot of the fact index.
const indexFileName = "facts.gob.gz"

// FactStore is the embedding-indexed store of user facts, partitioned by
// user_id. Every read and write carries a user_id filter, so one user's
// facts never surface in another's context.
type FactStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewFactStore creates an in-memory FactStore using the given embedder.
func NewFactStore(embedder embeddings.Embedder) (*FactStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &FactStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

// Add embeds and upserts a fact into the index.
func (s *FactStore) Add(ctx context.Context, fact Fact) error {
	doc := chromem.Document{
		ID:       fact.ID,
		Content:  fact.Document(),
		Metadata: factToMetadata(fact),
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("adding fact %s: %w", fact.ID, err)
	}
	return nil
}

// Search returns up to topK facts for the user ranked by similarity to the
// query. No relevance threshold is applied: distant matches still count.
func (s *FactStore) Search(ctx context.Context, query, userID string, topK int) ([]Fact, error) {
	if topK <= 0 {
		topK = 5
	}

	// chromem-go requires nResults <= collection size.
	if count := s.collection.Count(); count == 0 {
		return nil, nil
	} else if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, query, topK, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("fact query: %w", err)
	}

	facts := make([]Fact, len(results))
	for i, r := range results {
		facts[i] = metadataToFact(r.ID, r.Metadata)
	}
	return facts, nil
}

// All returns up to limit facts stored for the user.
func (s *FactStore) All(ctx context.Context, userID string, limit int) ([]Fact, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	// Rank against the user id as a throwaway query text: the user_id
	// filter does the real work.
	results, err := s.collection.Query(ctx, userID, limit, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("fact scan: %w", err)
	}

	facts := make([]Fact, len(results))
	for i, r := range results {
		facts[i] = metadataToFact(r.ID, r.Metadata)
	}
	return facts, nil
}

// Delete removes one fact by id.
func (s *FactStore) Delete(ctx context.Context, id string) error {
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("deleting fact %s: %w", id, err)
	}
	return nil
}

// Clear removes every fact stored for the user.
func (s *FactStore) Clear(ctx context.Context, userID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, map[string]string{"user_id": userID}, nil); err != nil {
		return fmt.Errorf("clearing facts for %s: %w", userID, err)
	}
	return nil
}

// Count returns the total number of facts across all users.
func (s *FactStore) Count() int {
	return s.collection.Count()
}

// Persist writes the index snapshot under dir.
func (s *FactStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, indexFileName), true, "")
}

// Load restores the index snapshot from dir.
func (s *FactStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, indexFileName), ""); err != nil {
		return fmt.Errorf("import fact index: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func factToMetadata(f Fact) map[string]string {
	return map[string]string{
		"user_id":   f.UserID,
		"entity":    f.Entity,
		"relation":  f.Relation,
		"attribute": f.Attribute,
		"value":     f.Value,
		"context":   f.Context,
		"timestamp": f.Timestamp.UTC().Format(time.RFC3339),
	}
}

func metadataToFact(id string, m map[string]string) Fact {
	ts, _ := time.Parse(time.RFC3339, m["timestamp"])
	return Fact{
		ID:        id,
		UserID:    m["user_id"],
		Entity:    m["entity"],
		Relation:  m["relation"],
		Attribute: m["attribute"],
		Value:     m["value"],
		Context:   m["context"],
		Timestamp: ts,
	}
}
