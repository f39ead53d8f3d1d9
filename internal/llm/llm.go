package llm

import "context"

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Client defines the interface for text-generation providers.
type Client interface {
	// StreamChat generates a response to the conversation and streams it
	// as an ordered sequence of text fragments. The channel closes when
	// generation completes; cancelling ctx stops the stream.
	StreamChat(ctx context.Context, messages []Message) (<-chan string, error)
}
