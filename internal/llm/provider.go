package llm

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider produces one assistant reply for an ordered conversation
// (oldest -> newest, last element is the pending user message).
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
