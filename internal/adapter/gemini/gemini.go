package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

var (
	_ adapter.StreamingChatAdapter = (*GeminiAdapter)(nil)
	_ adapter.VisionAdapter        = (*GeminiAdapter)(nil)
)

const systemInstruction = `You are a knowledgeable nutritionist and health advisor.
Provide helpful, accurate information about nutrition, food, and healthy eating.
Base your responses on scientific evidence and be encouraging while being honest
about health implications. If you're discussing a specific food that was analyzed,
reference the analysis context provided.`

// GeminiAdapter talks to the Google Gemini generateContent API and exposes it
// through the chat and vision adapter interfaces.
type GeminiAdapter struct {
	apiKey      string
	baseURL     string
	visionModel string
	chatModel   string
	httpClient  *http.Client
}

// Config holds configuration for the Gemini adapter.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://generativelanguage.googleapis.com
	VisionModel    string // optional, defaults to gemini-2.5-flash
	ChatModel      string // optional, defaults to gemini-2.5-flash
	RequestTimeout time.Duration
}

// New creates a GeminiAdapter instance.
func New(cfg Config) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	visionModel := strings.TrimSpace(cfg.VisionModel)
	if visionModel == "" {
		visionModel = "gemini-2.5-flash"
	}
	chatModel := strings.TrimSpace(cfg.ChatModel)
	if chatModel == "" {
		chatModel = "gemini-2.5-flash"
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second // Gemini may need more time for generation
	}

	return &GeminiAdapter{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		visionModel: visionModel,
		chatModel:   chatModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// ChatModel returns the configured chat model name.
func (a *GeminiAdapter) ChatModel() string { return a.chatModel }

// VisionModel returns the configured vision model name.
func (a *GeminiAdapter) VisionModel() string { return a.visionModel }

// CreateCompletion sends the conversation to Gemini and returns the aggregate
// reply text.
func (a *GeminiAdapter) CreateCompletion(ctx context.Context, req nutrition.ChatRequest) (nutrition.ChatResponse, error) {
	body, err := json.Marshal(chatPayload(req))
	if err != nil {
		return nutrition.ChatResponse{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	respBody, err := a.generate(ctx, a.chatModel, body)
	if err != nil {
		return nutrition.ChatResponse{}, err
	}

	text, err := extractText(respBody)
	if err != nil {
		return nutrition.ChatResponse{}, err
	}
	return nutrition.ChatResponse{Success: true, Response: text, ModelUsed: a.chatModel}, nil
}

// CreateCompletionStream sends a streaming request to Gemini and converts SSE
// events into ordered text fragments.
func (a *GeminiAdapter) CreateCompletionStream(ctx context.Context, req nutrition.ChatRequest) (<-chan adapter.StreamEvent, error) {
	body, err := json.Marshal(chatPayload(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s&alt=sse", a.baseURL, a.chatModel, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: send stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, upstreamError("stream", resp.StatusCode, respBody)
	}

	ch := make(chan adapter.StreamEvent, 10)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		// emit delivers ev unless the context is gone. A canceled stream
		// may have no reader left, so sends never block past cancellation
		// and the goroutine always exits.
		emit := func(ev adapter.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		buf := make([]byte, 8192)
		leftover := ""
		for {
			select {
			case <-ctx.Done():
				select {
				case ch <- adapter.StreamEvent{Error: ctx.Err()}:
				default:
				}
				return
			default:
			}

			n, err := resp.Body.Read(buf)
			if n > 0 {
				data := leftover + string(buf[:n])
				lines := strings.Split(data, "\n")
				// Keep the last incomplete line for the next iteration
				leftover = lines[len(lines)-1]
				lines = lines[:len(lines)-1]

				for _, line := range lines {
					line = strings.TrimSpace(line)
					if !strings.HasPrefix(line, "data:") {
						continue
					}
					payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
					if payload == "" || payload == "[DONE]" {
						continue
					}
					var chunk generateResponse
					if perr := json.Unmarshal([]byte(payload), &chunk); perr != nil {
						emit(adapter.StreamEvent{Error: fmt.Errorf("gemini: parse stream: %w", perr)})
						return
					}
					if text := chunk.text(); text != "" {
						if !emit(adapter.StreamEvent{Fragment: nutrition.NewFragment(text)}) {
							return
						}
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					return
				}
				emit(adapter.StreamEvent{Error: fmt.Errorf("gemini: read stream: %w", err)})
				return
			}
		}
	}()
	return ch, nil
}

// AnalyzeImage submits the image and prompt to the vision model and returns
// the raw analysis text.
func (a *GeminiAdapter) AnalyzeImage(ctx context.Context, image adapter.ImagePayload, prompt string) (string, error) {
	if len(image.Data) == 0 {
		return "", errors.New("gemini: empty image payload")
	}
	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{
					MIMEType: image.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(image.Data),
				}},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generationConfig{
			// Lower temperature keeps nutrition estimates consistent across scans
			Temperature:     floatPtr(0.4),
			MaxOutputTokens: 2000,
			CandidateCount:  1,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	respBody, err := a.generate(ctx, a.visionModel, body)
	if err != nil {
		return "", err
	}
	return extractText(respBody)
}

// generate performs a one-shot generateContent call and returns the raw body.
func (a *GeminiAdapter) generate(ctx context.Context, model string, reqBody []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.baseURL, model, a.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("generate", resp.StatusCode, respBody)
	}
	return respBody, nil
}

func upstreamError(op string, status int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("gemini: %s (code=%d, status=%s)", errResp.Error.Message, errResp.Error.Code, errResp.Error.Status)
	}
	return fmt.Errorf("gemini: %s http %d: %s", op, status, string(body))
}

// chatPayload converts the conversation into Gemini request format. Context
// from a prior scan is injected ahead of the history, mirroring how the scan
// UI frames follow-up questions.
func chatPayload(req nutrition.ChatRequest) generateRequest {
	var sb strings.Builder
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n")

	if len(req.Context) > 0 {
		if ctxJSON, err := json.MarshalIndent(req.Context, "", "  "); err == nil {
			sb.WriteString("Context from previous food analysis: ")
			sb.Write(ctxJSON)
			sb.WriteString("\n\n")
		}
	}
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			sb.WriteString("User: ")
		} else {
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	cfg := &generationConfig{
		MaxOutputTokens: 1000,
		CandidateCount:  1,
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	} else {
		cfg.Temperature = floatPtr(0.7)
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		cfg.MaxOutputTokens = *req.MaxTokens
	}

	return generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: sb.String()}},
		}},
		GenerationConfig: cfg,
	}
}

func extractText(respBody []byte) (string, error) {
	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("gemini: unmarshal response: %w", err)
	}
	text := parsed.text()
	if text == "" {
		return "", errors.New("gemini: response contained no candidates")
	}
	return text, nil
}

func floatPtr(v float64) *float64 { return &v }

// generateRequest mirrors the subset of the Gemini request schema we use.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	CandidateCount  int      `json:"candidateCount,omitempty"`
}

// generateResponse covers both one-shot responses and stream chunks.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
