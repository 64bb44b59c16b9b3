// Package history models conversation context. The answer path treats turns
// as read-only input; persistence beyond the in-memory session store is an
// external concern.
package history

import (
	"context"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation session.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Text is the message content.
	Text string `json:"text"`

	// Pipeline is the pipeline that produced an assistant turn. Empty for
	// user turns and for fallback answers.
	Pipeline string `json:"pipeline,omitempty"`

	// Timestamp is when the turn happened.
	Timestamp time.Time `json:"timestamp"`
}

// LastAssistantPipeline returns the pipeline of the most recent assistant
// turn, or empty when no assistant turn carries one.
func LastAssistantPipeline(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant && turns[i].Pipeline != "" {
			return turns[i].Pipeline
		}
	}
	return ""
}

// Tail returns the last n turns.
func Tail(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// Provider supplies recent turns for a session.
type Provider interface {
	// Recent returns up to n most recent turns for the session, oldest first.
	Recent(ctx context.Context, sessionID string, n int) ([]Turn, error)

	// Append records a turn for the session.
	Append(ctx context.Context, sessionID string, turn Turn) error
}
