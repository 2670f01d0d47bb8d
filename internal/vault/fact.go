package vault

import (
	"fmt"
	"time"
)

// Fact is one atomic claim about a user's world, extracted from a message
// and stored for later semantic recall. Facts are immutable once stored.
type Fact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Entity    string    `json:"entity"`    // "Abhishek", "Mom", "robotics project"
	Relation  string    `json:"relation"`  // "friend", "family", "project"
	Attribute string    `json:"attribute"` // "mood", "health", "deadline"
	Value     string    `json:"value"`     // "annoyed today", "recovering"
	Context   string    `json:"context"`   // sentence the fact was mentioned in
	Timestamp time.Time `json:"timestamp"`
}

// Document renders the fact as the text that gets embedded.
func (f Fact) Document() string {
	return fmt.Sprintf("%s %s %s: %s. Context: %s", f.Entity, f.Relation, f.Attribute, f.Value, f.Context)
}

// EntityGraph groups one entity's relationships and attributes, built from
// that entity's stored facts.
type EntityGraph struct {
	Entity        string              `json:"entity"`
	Relationships map[string][]string `json:"relationships"`
	Attributes    map[string]string   `json:"attributes"`
}
