package fallback

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

var _ adapter.StreamingChatAdapter = (*FallbackAdapter)(nil)

// FallbackAdapter tries a chain of adapters in order, once each, and serves
// the reply from the first that succeeds. There is deliberately no retry or
// backoff: an unreachable upstream should degrade to the next producer
// immediately so the client never waits on a dead connection.
type FallbackAdapter struct {
	adapters []adapter.StreamingChatAdapter
	logger   *log.Logger
}

// New creates a FallbackAdapter over the given chain. Callers normally put a
// canned adapter last so the chain as a whole cannot fail.
func New(adapters ...adapter.StreamingChatAdapter) (*FallbackAdapter, error) {
	if len(adapters) == 0 {
		return nil, errors.New("fallback: at least one adapter required")
	}
	return &FallbackAdapter{adapters: adapters}, nil
}

// SetLogger attaches a logger for degradation diagnostics.
func (f *FallbackAdapter) SetLogger(logger *log.Logger) {
	f.logger = logger
}

// CreateCompletion returns the first successful aggregate reply.
func (f *FallbackAdapter) CreateCompletion(ctx context.Context, req nutrition.ChatRequest) (nutrition.ChatResponse, error) {
	var lastErr error
	for i, a := range f.adapters {
		select {
		case <-ctx.Done():
			return nutrition.ChatResponse{}, ctx.Err()
		default:
		}
		resp, err := a.CreateCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		f.logf("completion adapter[%d] failed, degrading: %v", i, err)
	}
	return nutrition.ChatResponse{}, fmt.Errorf("fallback: all adapters failed: %w", lastErr)
}

// CreateCompletionStream opens a stream on the first adapter that accepts the
// request. A failure to open moves to the next adapter; a failure mid-stream
// does not, since fragments may already have reached the client.
func (f *FallbackAdapter) CreateCompletionStream(ctx context.Context, req nutrition.ChatRequest) (<-chan adapter.StreamEvent, error) {
	var lastErr error
	for i, a := range f.adapters {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		ch, err := a.CreateCompletionStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		f.logf("stream adapter[%d] unreachable, degrading: %v", i, err)
	}
	return nil, fmt.Errorf("fallback: all adapters failed: %w", lastErr)
}

func (f *FallbackAdapter) logf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Printf(format, args...)
	}
}
