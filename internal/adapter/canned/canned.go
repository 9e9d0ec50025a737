package canned

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// Ensure CannedAdapter implements the streaming adapter.
var _ adapter.StreamingChatAdapter = (*CannedAdapter)(nil)

const defaultTickDelay = 40 * time.Millisecond

// DefaultReply is used when the history carries no user turn at all.
const DefaultReply = "I'm your nutrition assistant. Scan a food item or ask me anything about nutrition, calories, or healthy eating."

// CannedAdapter answers from a fixed response table, selected by the latest
// user message and biased by the attached analysis context. Replies stream
// word by word on a fixed tick to simulate generation latency. It never fails,
// which makes it the terminal link of every fallback chain.
type CannedAdapter struct {
	tickDelay time.Duration
}

// New creates a CannedAdapter with the default emission tick.
func New() *CannedAdapter {
	return &CannedAdapter{tickDelay: defaultTickDelay}
}

// NewWithTick creates a CannedAdapter with a custom emission tick. A zero or
// negative tick disables the inter-fragment delay.
func NewWithTick(tick time.Duration) *CannedAdapter {
	return &CannedAdapter{tickDelay: tick}
}

// CreateCompletion returns the selected reply in one piece.
func (a *CannedAdapter) CreateCompletion(ctx context.Context, req nutrition.ChatRequest) (nutrition.ChatResponse, error) {
	return nutrition.ChatResponse{
		Success:   true,
		Response:  ComposeReply(req),
		ModelUsed: "canned",
	}, nil
}

// CreateCompletionStream emits the selected reply word by word. The sequence
// is finite and ordered; the channel closes after the final fragment.
func (a *CannedAdapter) CreateCompletionStream(ctx context.Context, req nutrition.ChatRequest) (<-chan adapter.StreamEvent, error) {
	reply := ComposeReply(req)
	ch := make(chan adapter.StreamEvent, 10)
	go func() {
		defer close(ch)
		streamWords(ctx, ch, reply, a.tickDelay)
	}()
	return ch, nil
}

// streamWords splits text into word fragments and sends them on ch, pacing by
// tick. Concatenating the fragments reproduces text exactly. On cancellation
// the terminal error send must not block: an abandoned stream has no reader
// left to drain the channel, and the goroutine has to exit regardless.
func streamWords(ctx context.Context, ch chan<- adapter.StreamEvent, text string, tick time.Duration) {
	words := strings.Fields(text)
	for i, word := range words {
		if i > 0 {
			word = " " + word
		}
		select {
		case <-ctx.Done():
			trySend(ch, adapter.StreamEvent{Error: ctx.Err()})
			return
		case ch <- adapter.StreamEvent{Fragment: nutrition.NewFragment(word)}:
		}
		if tick > 0 && i < len(words)-1 {
			select {
			case <-ctx.Done():
				trySend(ch, adapter.StreamEvent{Error: ctx.Err()})
				return
			case <-time.After(tick):
			}
		}
	}
}

// trySend delivers ev if the channel has room and drops it otherwise.
func trySend(ch chan<- adapter.StreamEvent, ev adapter.StreamEvent) {
	select {
	case ch <- ev:
	default:
	}
}

// StreamText exposes the word-by-word emitter for callers that need to frame
// a fixed message through the normal streaming path.
func StreamText(ctx context.Context, text string, tick time.Duration) <-chan adapter.StreamEvent {
	ch := make(chan adapter.StreamEvent, 10)
	go func() {
		defer close(ch)
		streamWords(ctx, ch, text, tick)
	}()
	return ch
}

// ComposeReply selects the response text. It is a pure function of the latest
// user message and the optional analysis context.
func ComposeReply(req nutrition.ChatRequest) string {
	last := req.LastUserMessage()
	if strings.TrimSpace(last.Content) == "" {
		return DefaultReply
	}

	question := strings.ToLower(last.Content)
	food := contextString(req.Context, "food_name")

	switch {
	case containsAny(question, "calorie", "kcal"):
		if cal, ok := contextNumber(req.Context, "calories"); ok {
			if food != "" {
				return fmt.Sprintf("Based on the analysis, %s contains roughly %d calories per serving. Actual values vary with portion size and preparation.", food, cal)
			}
			return fmt.Sprintf("The analyzed item contains roughly %d calories per serving. Actual values vary with portion size and preparation.", cal)
		}
		return "Calorie content depends heavily on portion size and preparation. Scan the item first and I can give you a per-serving estimate."

	case containsAny(question, "protein", "carb", "fat", "fiber", "macro"):
		if req.Context != nil {
			return macroReply(req.Context, food)
		}
		return "Macronutrients are the protein, carbohydrates, and fats that make up your food. Scan an item and I'll break down its macros for you."

	case containsAny(question, "healthy", "health score", "score", "good for"):
		if score, ok := contextNumber(req.Context, "health_score"); ok {
			verdict := "a reasonable choice in moderation"
			if score >= 80 {
				verdict = "an excellent everyday choice"
			} else if score < 50 {
				verdict = "best enjoyed occasionally"
			}
			if food != "" {
				return fmt.Sprintf("%s scores %d out of 100 on our health scale, which makes it %s.", food, score, verdict)
			}
			return fmt.Sprintf("This item scores %d out of 100 on our health scale, which makes it %s.", score, verdict)
		}
		return "A food's healthiness depends on its nutrient density, processing level, and how it fits your overall diet. Scan an item and I'll score it for you."

	default:
		if food != "" {
			return fmt.Sprintf("Great question about %s. Pay attention to portion size and pair it with whole foods like vegetables and lean protein for a balanced meal.", food)
		}
		return "Balanced eating comes down to variety, portion control, and mostly whole foods. Ask me about a specific food or scan an item for a detailed breakdown."
	}
}

func macroReply(ctx nutrition.AnalysisContext, food string) string {
	protein, okP := contextFloat(ctx, "protein_g")
	carbs, okC := contextFloat(ctx, "carbs_g")
	fat, okF := contextFloat(ctx, "fat_g")
	if !okP && !okC && !okF {
		if food != "" {
			return fmt.Sprintf("I don't have a macro breakdown for %s yet. Re-scan the item and I'll estimate protein, carbs, and fat per serving.", food)
		}
		return "I don't have a macro breakdown for this item yet. Re-scan it and I'll estimate protein, carbs, and fat per serving."
	}
	subject := "The analyzed item"
	if food != "" {
		subject = food
	}
	return fmt.Sprintf("%s provides approximately %gg protein, %gg carbohydrates, and %gg fat per serving.", subject, protein, carbs, fat)
}

// contextNumber reads a numeric attribute, tolerating the float64 that JSON
// decoding produces as well as the ints a Go caller would attach.
func contextNumber(ctx nutrition.AnalysisContext, key string) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	switch v := ctx[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// contextFloat reads a numeric attribute without rounding, so fractional
// gram values survive into the reply text.
func contextFloat(ctx nutrition.AnalysisContext, key string) (float64, bool) {
	if ctx == nil {
		return 0, false
	}
	switch v := ctx[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func contextString(ctx nutrition.AnalysisContext, key string) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
