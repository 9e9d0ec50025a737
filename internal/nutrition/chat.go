package nutrition

// ChatMessage follows the role/content schema used by the scan UI.
// Timestamp is informational and echoed back verbatim when present.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AnalysisContext is the flat food-attribute map attached to a conversation
// after a scan (food_name, health_score, calories, macro fields). It is
// immutable once attached and only biases reply selection.
type AnalysisContext map[string]any

// ChatRequest captures one assistant exchange. Messages are an ordered,
// append-only history for the current session; nothing is persisted.
type ChatRequest struct {
	Messages    []ChatMessage   `json:"messages"`
	Context     AnalysisContext `json:"context,omitempty"`
	Stream      *bool           `json:"stream,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

// WantsStream reports whether the caller asked for a streamed reply.
// Streaming is the default when the field is omitted.
func (r ChatRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// LastUserMessage returns the most recent user turn, or an empty message when
// the history carries none.
func (r ChatRequest) LastUserMessage() ChatMessage {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i]
		}
	}
	return ChatMessage{}
}

// ChatResponse is the aggregate (non-streaming) reply shape.
type ChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	ModelUsed string `json:"model_used"`
}
