package adapter

import (
	"context"

	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// ChatAdapter produces a complete assistant reply for a conversation.
type ChatAdapter interface {
	CreateCompletion(ctx context.Context, req nutrition.ChatRequest) (nutrition.ChatResponse, error)
}

// StreamingChatAdapter additionally exposes the reply as an ordered, lazy
// fragment sequence. The channel is closed after the final fragment; a
// StreamEvent carrying Error terminates the sequence early.
type StreamingChatAdapter interface {
	ChatAdapter
	CreateCompletionStream(ctx context.Context, req nutrition.ChatRequest) (<-chan StreamEvent, error)
}

// VisionAdapter analyzes one decoded food image against a prompt and returns
// the raw analysis text.
type VisionAdapter interface {
	AnalyzeImage(ctx context.Context, image ImagePayload, prompt string) (string, error)
}

// ImagePayload is a decoded image ready for upstream submission.
type ImagePayload struct {
	MIMEType string
	Data     []byte
}

// StreamEvent carries exactly one fragment or a terminal error.
type StreamEvent struct {
	Fragment *nutrition.StreamFragment
	Error    error
}
