package answer

import (
	"context"
	"strings"

	"github.com/compozy/molrag/engine/core"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/pkg/logger"
)

const (
	RoleUser      = llmadapter.RoleUser
	RoleAssistant = llmadapter.RoleAssistant
)

// ConversationTurn is one prior message of the calling session.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reasons a turn is dropped.
const (
	dropMissingRole    = "missing_role"
	dropMissingContent = "missing_content"
	dropUnknownRole    = "unknown_role"
)

// HistoryFromMaps converts loosely typed entries (decoded JSON) into turns.
// An absent or non-string field becomes empty and is dropped later by
// ValidateHistory.
func HistoryFromMaps(entries []map[string]any) []ConversationTurn {
	out := make([]ConversationTurn, 0, len(entries))
	for _, e := range entries {
		out = append(out, ConversationTurn{
			Role:    core.StringValue(e, "role"),
			Content: core.StringValue(e, "content"),
		})
	}
	return out
}

// ValidateHistory returns a new slice holding only well formed turns, in order.
// Each dropped entry is logged as a warning. The input is not modified.
func ValidateHistory(ctx context.Context, history []ConversationTurn) []ConversationTurn {
	if len(history) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)
	valid := make([]ConversationTurn, 0, len(history))
	for i, turn := range history {
		reason := checkTurn(turn)
		if reason == "" {
			valid = append(valid, ConversationTurn{Role: strings.ToLower(strings.TrimSpace(turn.Role)), Content: turn.Content})
			continue
		}
		log.Warn("Skipping invalid history entry", "index", i, "reason", reason, "role", turn.Role)
		recordHistoryDropped(ctx, reason)
	}
	return valid
}

func checkTurn(turn ConversationTurn) string {
	role := strings.ToLower(strings.TrimSpace(turn.Role))
	switch {
	case role == "":
		return dropMissingRole
	case strings.TrimSpace(turn.Content) == "":
		return dropMissingContent
	case role != RoleUser && role != RoleAssistant:
		return dropUnknownRole
	default:
		return ""
	}
}

func toMessages(history []ConversationTurn) []llmadapter.Message {
	out := make([]llmadapter.Message, 0, len(history)+1)
	for _, turn := range history {
		out = append(out, llmadapter.Message{Role: turn.Role, Content: turn.Content})
	}
	return out
}
