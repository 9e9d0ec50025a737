package nutrition

// StreamFragment is one incremental piece of generated text. Fragments are
// produced in strict sequence; concatenating Content in emission order yields
// the full reply.
type StreamFragment struct {
	Content string `json:"content"`
}

// NewFragment wraps a piece of text for emission.
func NewFragment(content string) *StreamFragment {
	return &StreamFragment{Content: content}
}
