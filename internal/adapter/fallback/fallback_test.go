package fallback

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/adapter/canned"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// brokenAdapter fails every call and counts attempts.
type brokenAdapter struct {
	err      error
	attempts int
}

func (b *brokenAdapter) CreateCompletion(ctx context.Context, req nutrition.ChatRequest) (nutrition.ChatResponse, error) {
	b.attempts++
	return nutrition.ChatResponse{}, b.err
}

func (b *brokenAdapter) CreateCompletionStream(ctx context.Context, req nutrition.ChatRequest) (<-chan adapter.StreamEvent, error) {
	b.attempts++
	return nil, b.err
}

func userReq(content string) nutrition.ChatRequest {
	return nutrition.ChatRequest{Messages: []nutrition.ChatMessage{{Role: "user", Content: content}}}
}

func TestNewRequiresAdapters(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("New() with no adapters expected error")
	}
}

func TestStreamDegradesToNextAdapter(t *testing.T) {
	broken := &brokenAdapter{err: errors.New("connection refused")}
	chain, err := New(broken, canned.NewWithTick(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ch, err := chain.CreateCompletionStream(context.Background(), userReq("hello"))
	if err != nil {
		t.Fatalf("CreateCompletionStream() error = %v", err)
	}

	var sb strings.Builder
	for ev := range ch {
		if ev.Error != nil {
			t.Fatalf("unexpected stream error: %v", ev.Error)
		}
		sb.WriteString(ev.Fragment.Content)
	}
	if sb.Len() == 0 {
		t.Fatal("degraded stream produced no fragments")
	}
	if broken.attempts != 1 {
		t.Fatalf("broken adapter attempted %d times, want exactly 1 (no retries)", broken.attempts)
	}
}

func TestStreamTriesEachAdapterOnce(t *testing.T) {
	first := &brokenAdapter{err: errors.New("first down")}
	second := &brokenAdapter{err: errors.New("second down")}
	chain, err := New(first, second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = chain.CreateCompletionStream(context.Background(), userReq("hi"))
	if err == nil {
		t.Fatal("expected error when every adapter fails")
	}
	if !errors.Is(err, second.err) {
		t.Errorf("error = %v, want to wrap the last failure %v", err, second.err)
	}
	if first.attempts != 1 || second.attempts != 1 {
		t.Errorf("attempts = %d/%d, want 1/1", first.attempts, second.attempts)
	}
}

func TestCompletionDegradesToNextAdapter(t *testing.T) {
	broken := &brokenAdapter{err: errors.New("timeout")}
	chain, err := New(broken, canned.NewWithTick(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := chain.CreateCompletion(context.Background(), userReq("How many calories?"))
	if err != nil {
		t.Fatalf("CreateCompletion() error = %v", err)
	}
	if !resp.Success || resp.Response == "" {
		t.Fatalf("degraded completion = %+v, want a successful reply", resp)
	}
}

func TestCanceledContextShortCircuits(t *testing.T) {
	broken := &brokenAdapter{err: errors.New("down")}
	chain, err := New(broken, canned.NewWithTick(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := chain.CreateCompletionStream(ctx, userReq("hi")); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if broken.attempts != 0 {
		t.Fatalf("canceled request still reached an adapter %d times", broken.attempts)
	}
}
