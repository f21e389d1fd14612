package ai

import "context"

// Client is a chat-completion capable model.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
