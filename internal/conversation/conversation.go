// Package conversation drives a single multi-turn dialogue against the chat
// endpoint, one simulated user per conversation.
package conversation

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TurnResult is the human-readable record of one completed turn. Reply is
// truncated; full text is not retained past the turn.
type TurnResult struct {
	Question string `json:"question"`
	Reply    string `json:"reply"`
}

// Result is the outcome of one conversation. Immutable once the driver
// returns it.
type Result struct {
	ConversationID int          `json:"conversation_id"`
	Username       string       `json:"username"`
	Success        bool         `json:"success"`
	Error          string       `json:"error,omitempty"`
	Duration       float64      `json:"duration"`
	TotalMessages  int          `json:"total_messages"`
	Turns          []TurnResult `json:"results,omitempty"`
}

const maxReplyLen = 100

// truncate shortens a reply to maxReplyLen runes with an ellipsis suffix.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxReplyLen {
		return s
	}
	return string(runes[:maxReplyLen]) + "..."
}

var usernameSeq atomic.Uint64

// NewUsername generates a fresh simulated-user name. The millisecond
// timestamp keeps names scoped to the run; the sequence counter keeps them
// distinct even when many conversations start within the same millisecond.
func NewUsername() string {
	return fmt.Sprintf("tb_%d_%d", time.Now().UnixMilli(), usernameSeq.Add(1))
}
