// Package session holds the conversation state a chat bot keeps per dialogue:
// the message history plus per-conversation settings.
package session

import (
	"maps"
	"slices"
	"time"
)

// Message represents a single conversation turn.
type Message struct {
	Role       string    `json:"role"` // "user" or "assistant"
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"` // Estimated tokens
	Timestamp  time.Time `json:"timestamp"`
}

// State represents all serializable dialogue state of one conversation.
// It is the record type stored per chat by dialogue.Storage.
type State struct {
	Step         string            `json:"step"` // Current step of the conversation flow
	History      []Message         `json:"history"`
	SystemPrompt string            `json:"system_prompt"`
	Language     string            `json:"language"`
	Metadata     map[string]string `json:"metadata"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of s, safe to hand to another goroutine.
func (s State) Clone() State {
	s.History = slices.Clone(s.History)
	s.Metadata = maps.Clone(s.Metadata)
	return s
}

// TotalTokens sums the estimated tokens of the history.
func (s State) TotalTokens() int {
	total := 0
	for _, msg := range s.History {
		total += msg.TokenCount
	}
	return total
}
