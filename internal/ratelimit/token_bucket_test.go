package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucket_Allow(t *testing.T) {
	tb := NewTokenBucket(10, 5) // 10 burst, 5/sec sustained

	// Should allow first 10 requests immediately
	for i := 0; i < 10; i++ {
		if !tb.Allow() {
			t.Errorf("request %d should be allowed (burst)", i)
		}
	}

	// 11th request should be denied
	if tb.Allow() {
		t.Error("11th request should be denied (bucket empty)")
	}

	// Wait for 1 second, should refill 5 tokens
	time.Sleep(1 * time.Second)

	// Should allow 5 more requests
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("request after refill %d should be allowed", i)
		}
	}

	// 6th request should be denied
	if tb.Allow() {
		t.Error("request after 5 refills should be denied")
	}
}

func TestTokenBucket_AllowN(t *testing.T) {
	tb := NewTokenBucket(100, 10)

	// Consume 50 tokens
	if !tb.AllowN(50) {
		t.Error("should allow 50 tokens")
	}

	// Should have ~50 remaining (allow for float precision)
	remaining := tb.Remaining()
	if remaining < 49 || remaining > 51 {
		t.Errorf("expected ~50 remaining, got %f", remaining)
	}

	// Should deny 60 tokens (only 50 available)
	if tb.AllowN(60) {
		t.Error("should deny 60 tokens when only 50 available")
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(10, 1)

	for i := 0; i < 10; i++ {
		tb.Allow()
	}
	if tb.Allow() {
		t.Error("bucket should be empty before reset")
	}

	tb.Reset()
	if !tb.Allow() {
		t.Error("bucket should allow requests after reset")
	}
	remaining := tb.Remaining()
	if remaining < 8.5 || remaining > 9.5 {
		t.Errorf("expected ~9 remaining after reset+allow, got %f", remaining)
	}
}

func TestTokenBucket_CapacityCap(t *testing.T) {
	tb := NewTokenBucket(5, 100)
	time.Sleep(200 * time.Millisecond)
	if remaining := tb.Remaining(); remaining > 5 {
		t.Errorf("refill exceeded capacity: %f", remaining)
	}
}
