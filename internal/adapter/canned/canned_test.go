package canned

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

func chatReq(question string, ctx nutrition.AnalysisContext) nutrition.ChatRequest {
	return nutrition.ChatRequest{
		Messages: []nutrition.ChatMessage{{Role: "user", Content: question}},
		Context:  ctx,
	}
}

func TestComposeReply(t *testing.T) {
	appleCtx := nutrition.AnalysisContext{
		"food_name":    "Apple",
		"calories":     95,
		"health_score": 85,
	}

	tests := []struct {
		name     string
		req      nutrition.ChatRequest
		contains []string
	}{
		{
			name:     "calories with context",
			req:      chatReq("How many calories?", appleCtx),
			contains: []string{"Apple", "95"},
		},
		{
			name:     "calories without context",
			req:      chatReq("how many calories are in a bagel", nil),
			contains: []string{"portion size"},
		},
		{
			name:     "health score with context",
			req:      chatReq("Is this healthy?", appleCtx),
			contains: []string{"Apple", "85"},
		},
		{
			name: "macros with breakdown",
			req: chatReq("what about protein", nutrition.AnalysisContext{
				"food_name": "Chicken",
				"protein_g": float64(31),
				"carbs_g":   float64(0),
				"fat_g":     float64(3),
			}),
			contains: []string{"Chicken", "31"},
		},
		{
			name:     "no user turn at all",
			req:      nutrition.ChatRequest{Messages: []nutrition.ChatMessage{{Role: "assistant", Content: "Hi!"}}},
			contains: []string{"nutrition assistant"},
		},
		{
			name:     "general question",
			req:      chatReq("what should I eat for dinner", nil),
			contains: []string{"portion"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeReply(tt.req)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("ComposeReply() = %q, want it to contain %q", got, want)
				}
			}
		})
	}
}

func TestComposeReplyIsDeterministic(t *testing.T) {
	req := chatReq("How many calories?", nutrition.AnalysisContext{"calories": 42})
	first := ComposeReply(req)
	for i := 0; i < 5; i++ {
		if got := ComposeReply(req); got != first {
			t.Fatalf("ComposeReply() not deterministic: %q vs %q", got, first)
		}
	}
}

// JSON decoding turns context numbers into float64; the reply must still
// find them.
func TestComposeReplyJSONNumbers(t *testing.T) {
	req := chatReq("calories?", nutrition.AnalysisContext{"food_name": "Apple", "calories": float64(95)})
	got := ComposeReply(req)
	if !strings.Contains(got, "95") {
		t.Fatalf("ComposeReply() = %q, want it to contain 95", got)
	}
}

func TestStreamConcatenationReproducesReply(t *testing.T) {
	a := NewWithTick(0)
	req := chatReq("How many calories?", nutrition.AnalysisContext{"food_name": "Apple", "calories": 95})

	want := ComposeReply(req)
	ch, err := a.CreateCompletionStream(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateCompletionStream() error = %v", err)
	}

	var sb strings.Builder
	count := 0
	for ev := range ch {
		if ev.Error != nil {
			t.Fatalf("unexpected stream error: %v", ev.Error)
		}
		sb.WriteString(ev.Fragment.Content)
		count++
	}
	if sb.String() != want {
		t.Errorf("concatenated stream = %q, want %q", sb.String(), want)
	}
	if wantCount := len(strings.Fields(want)); count != wantCount {
		t.Errorf("fragment count = %d, want one per word (%d)", count, wantCount)
	}
}

func TestStreamCanceledMidway(t *testing.T) {
	a := New() // default tick so cancellation lands between fragments
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := a.CreateCompletionStream(ctx, chatReq("tell me about healthy eating", nil))
	if err != nil {
		t.Fatalf("CreateCompletionStream() error = %v", err)
	}

	// Take one fragment, then cancel.
	<-ch
	cancel()

	sawError := false
	for ev := range ch {
		if ev.Error != nil {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("canceled stream must surface a terminal error event")
	}
}

// A client that disconnects without draining its stream must not pin the
// producer goroutine: the channel buffer fills and the terminal send has
// nobody left to receive it.
func TestAbandonedStreamsReleaseGoroutines(t *testing.T) {
	base := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	text := strings.Repeat("word ", 50)
	for i := 0; i < 20; i++ {
		StreamText(ctx, text, 0) // never consumed
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= base {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines = %d after cancel, want back to %d", runtime.NumGoroutine(), base)
}

func TestComposeReplyFractionalMacros(t *testing.T) {
	req := chatReq("how much protein does it have", nutrition.AnalysisContext{
		"food_name": "Apple",
		"protein_g": 0.5,
		"carbs_g":   25.0,
		"fat_g":     0.3,
	})
	got := ComposeReply(req)
	for _, want := range []string{"0.5g protein", "25g carbohydrates", "0.3g fat"} {
		if !strings.Contains(got, want) {
			t.Errorf("ComposeReply() = %q, want it to contain %q", got, want)
		}
	}
}

func TestCreateCompletionMatchesStream(t *testing.T) {
	a := NewWithTick(0)
	req := chatReq("Is this healthy?", nutrition.AnalysisContext{"health_score": 90})

	resp, err := a.CreateCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateCompletion() error = %v", err)
	}
	if !resp.Success {
		t.Error("CreateCompletion() Success = false")
	}
	if resp.Response != ComposeReply(req) {
		t.Errorf("CreateCompletion() = %q, want %q", resp.Response, ComposeReply(req))
	}
}

func TestStreamText(t *testing.T) {
	const text = "fixed fallback message"
	var sb strings.Builder
	for ev := range StreamText(context.Background(), text, 0) {
		if ev.Error != nil {
			t.Fatalf("unexpected error: %v", ev.Error)
		}
		sb.WriteString(ev.Fragment.Content)
	}
	if sb.String() != text {
		t.Fatalf("StreamText concatenation = %q, want %q", sb.String(), text)
	}
}
