package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/anirudhms/vani/internal/vault"
)

// handleRecallFacts performs semantic search over a user's remembered facts.
func (s *Server) handleRecallFacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user_id"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	facts, err := s.vault.RetrieveContext(ctx, query, userID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failed: %v", err)), nil
	}

	if len(facts) == 0 {
		return mcp.NewToolResultText("Nothing remembered for this user matches the query."), nil
	}

	return mcp.NewToolResultText(formatFacts(facts)), nil
}

// handleUserSummary groups everything remembered about a user by entity.
func (s *Server) handleUserSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user_id"), nil
	}

	query := request.GetString("query", "")
	summary, err := s.service.UserContextSummary(ctx, userID, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summary failed: %v", err)), nil
	}

	if summary.Facts == 0 {
		return mcp.NewToolResultText("Nothing is remembered about this user yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d fact(s) remembered about user %s:\n", summary.Facts, userID)

	entities := make([]string, 0, len(summary.Entities))
	for entity := range summary.Entities {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		fmt.Fprintf(&sb, "\n%s:\n", entity)
		for _, line := range summary.Entities[entity] {
			fmt.Fprintf(&sb, "  - %s\n", line)
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleQuotaStatus reports remaining daily calls per model.
func (s *Server) handleQuotaStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	states, err := s.quotas.All(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("quota lookup failed: %v", err)), nil
	}

	if len(states) == 0 {
		return mcp.NewToolResultText("No quota counters configured."), nil
	}

	var sb strings.Builder
	sb.WriteString("Daily model quota:\n")
	for _, st := range states {
		fmt.Fprintf(&sb, "- %s: %d/%d used, %d remaining, resets %s\n",
			st.Model, st.Count, st.Ceiling, st.Remaining(), st.ResetAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatFacts(facts []vault.Fact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d fact(s):\n", len(facts))
	for i, f := range facts {
		fmt.Fprintf(&sb, "\n--- Fact %d ---\n", i+1)
		fmt.Fprintf(&sb, "Entity: %s\n", f.Entity)
		fmt.Fprintf(&sb, "Relation: %s\n", f.Relation)
		fmt.Fprintf(&sb, "%s: %s\n", f.Attribute, f.Value)
		if f.Context != "" {
			fmt.Fprintf(&sb, "Context: %s\n", f.Context)
		}
		fmt.Fprintf(&sb, "Remembered: %s\n", f.Timestamp.Format(time.RFC3339))
	}
	return sb.String()
}
