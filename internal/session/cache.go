package session

import "context"

// Cache is the fast, volatile tier in front of the durable store. Adapters
// surface their failures; Manager is the layer that absorbs them and falls
// back, so implementations must not silently return empty results on
// connection errors.
type Cache interface {
	// GetOrCreateSession resolves a chat to its live session id, minting one
	// when absent, and refreshes the entry's sliding expiry.
	GetOrCreateSession(ctx context.Context, chatID int64) (string, error)

	// SaveConversation appends one serialized turn to the chat's live session
	// list and refreshes its expiry.
	SaveConversation(ctx context.Context, chatID int64, userMessage, botResponse string) error

	// GetConversationHistory returns up to limit of the newest cached turns,
	// oldest-first.
	GetConversationHistory(ctx context.Context, chatID int64, limit int) ([]Turn, error)

	// ClearSession drops both the session index entry and the turn list.
	ClearSession(ctx context.Context, chatID int64) error
}
