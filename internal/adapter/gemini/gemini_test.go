package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
	"github.com/healthscan-ai/healthscan-api/internal/testutil"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config with all fields",
			cfg: Config{
				APIKey:         "test-key",
				BaseURL:        "https://generativelanguage.googleapis.com",
				VisionModel:    "gemini-2.5-pro",
				ChatModel:      "gemini-2.5-flash",
				RequestTimeout: 30 * time.Second,
			},
		},
		{
			name: "minimal config applies defaults",
			cfg:  Config{APIKey: "test-key"},
		},
		{
			name:    "missing api key",
			cfg:     Config{BaseURL: "https://example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error = %v", err)
			}
			if a.ChatModel() == "" || a.VisionModel() == "" {
				t.Errorf("models not defaulted: chat=%q vision=%q", a.ChatModel(), a.VisionModel())
			}
		})
	}
}

func newTestAdapter(t *testing.T, baseURL string) *GeminiAdapter {
	t.Helper()
	a, err := New(Config{APIKey: "test-key", BaseURL: baseURL, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func generateBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestCreateCompletion(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("key query param = %q, want test-key", key)
		}
		body, _ := io.ReadAll(r.Body)
		var req generateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request body not valid JSON: %v", err)
		}
		if len(req.Contents) == 0 || len(req.Contents[0].Parts) == 0 {
			t.Error("request carries no content parts")
		} else if !strings.Contains(req.Contents[0].Parts[0].Text, "User: Is an apple healthy?") {
			t.Errorf("prompt missing user turn: %q", req.Contents[0].Parts[0].Text)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, generateBody("Apples are a great everyday choice."))
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	resp, err := a.CreateCompletion(context.Background(), nutrition.ChatRequest{
		Messages: []nutrition.ChatMessage{{Role: "user", Content: "Is an apple healthy?"}},
	})
	if err != nil {
		t.Fatalf("CreateCompletion() error = %v", err)
	}
	if !resp.Success {
		t.Error("Success = false")
	}
	if resp.Response != "Apples are a great everyday choice." {
		t.Errorf("Response = %q", resp.Response)
	}
	if resp.ModelUsed != a.ChatModel() {
		t.Errorf("ModelUsed = %q, want %q", resp.ModelUsed, a.ChatModel())
	}
}

func TestCreateCompletionUpstreamError(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	_, err := a.CreateCompletion(context.Background(), nutrition.ChatRequest{
		Messages: []nutrition.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error = %v, want upstream message surfaced", err)
	}
}

func TestCreateCompletionStream(t *testing.T) {
	chunks := []string{"Based on", " the analysis,", " Apple has", " 95 calories."}

	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if alt := r.URL.Query().Get("alt"); alt != "sse" {
			t.Errorf("alt query param = %q, want sse", alt)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", generateBody(chunk))
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	ch, err := a.CreateCompletionStream(context.Background(), nutrition.ChatRequest{
		Messages: []nutrition.ChatMessage{{Role: "user", Content: "How many calories?"}},
		Context:  nutrition.AnalysisContext{"food_name": "Apple", "calories": 95},
	})
	if err != nil {
		t.Fatalf("CreateCompletionStream() error = %v", err)
	}

	var got []string
	for ev := range ch {
		if ev.Error != nil {
			t.Fatalf("unexpected stream error: %v", ev.Error)
		}
		got = append(got, ev.Fragment.Content)
	}
	if len(got) != len(chunks) {
		t.Fatalf("received %d fragments, want %d: %v", len(got), len(chunks), got)
	}
	for i, want := range chunks {
		if got[i] != want {
			t.Errorf("fragment %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestCreateCompletionStreamOpenFailure(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"code":503,"message":"backend unavailable","status":"UNAVAILABLE"}}`)
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	_, err := a.CreateCompletionStream(context.Background(), nutrition.ChatRequest{
		Messages: []nutrition.ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected open failure to surface before any channel is returned")
	}
}

func TestAnalyzeImage(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req generateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("request body not valid JSON: %v", err)
		}
		if len(req.Contents) == 0 || len(req.Contents[0].Parts) != 2 {
			t.Fatalf("want image part plus prompt part, got %+v", req.Contents)
		}
		inline := req.Contents[0].Parts[0].InlineData
		if inline == nil || inline.MIMEType != "image/jpeg" || inline.Data == "" {
			t.Errorf("inline image malformed: %+v", inline)
		}
		if req.Contents[0].Parts[1].Text == "" {
			t.Error("prompt part empty")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, generateBody("Health Score: 85/100. Estimated calories: 95 per serving."))
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	text, err := a.AnalyzeImage(context.Background(), adapter.ImagePayload{
		MIMEType: "image/jpeg",
		Data:     []byte("fake image bytes"),
	}, "Analyze this food")
	if err != nil {
		t.Fatalf("AnalyzeImage() error = %v", err)
	}
	if !strings.Contains(text, "85/100") {
		t.Errorf("analysis text = %q", text)
	}
}

func TestAnalyzeImageEmptyPayload(t *testing.T) {
	a := newTestAdapter(t, "http://127.0.0.1:0")
	if _, err := a.AnalyzeImage(context.Background(), adapter.ImagePayload{}, "prompt"); err == nil {
		t.Fatal("expected error for empty image payload")
	}
}

func TestChatPayloadContextInjection(t *testing.T) {
	req := nutrition.ChatRequest{
		Messages: []nutrition.ChatMessage{
			{Role: "user", Content: "How many calories?"},
			{Role: "assistant", Content: "About 95."},
			{Role: "user", Content: "Is that a lot?"},
		},
		Context: nutrition.AnalysisContext{"food_name": "Apple", "calories": 95},
	}
	payload := chatPayload(req)
	if len(payload.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(payload.Contents))
	}
	text := payload.Contents[0].Parts[0].Text
	for _, want := range []string{"Apple", "95", "User: How many calories?", "Assistant: About 95.", "User: Is that a lot?"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q:\n%s", want, text)
		}
	}
	if idx := strings.Index(text, "Context from previous food analysis"); idx == -1 {
		t.Error("prompt missing context block")
	} else if idx > strings.Index(text, "User:") {
		t.Error("context block must precede the history")
	}
}
