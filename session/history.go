package session

import "time"

// Roles of conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TruncateHistory truncates the conversation history based on token and message limits.
// It applies message limit first, then token limit, removing oldest messages as needed.
// Returns the truncated history with the most recent messages preserved.
// A limit of zero or less disables that limit.
func TruncateHistory(history []Message, tokenLimit, messageLimit int) []Message {
	if len(history) == 0 {
		return history
	}

	// First, apply message limit
	if messageLimit > 0 && len(history) > messageLimit {
		history = history[len(history)-messageLimit:]
	}

	if tokenLimit <= 0 {
		return history
	}

	totalTokens := 0
	for _, msg := range history {
		totalTokens += msg.TokenCount
	}

	// Remove oldest messages until within token limit
	for totalTokens > tokenLimit && len(history) > 0 {
		totalTokens -= history[0].TokenCount
		history = history[1:]
	}

	return history
}

// AddMessage appends a message with an estimated token count to the history
// and stamps UpdatedAt. It returns the updated state; s itself is not
// modified.
func (s State) AddMessage(role, content string) State {
	now := time.Now()
	s = s.Clone()
	s.History = append(s.History, Message{
		Role:       role,
		Content:    content,
		TokenCount: EstimateTokens(content),
		Timestamp:  now,
	})
	s.UpdatedAt = now
	return s
}

// Truncate returns s with its history cut down to the given limits.
func (s State) Truncate(tokenLimit, messageLimit int) State {
	s = s.Clone()
	s.History = TruncateHistory(s.History, tokenLimit, messageLimit)
	return s
}
