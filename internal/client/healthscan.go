package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// HTTPClient abstracts the Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrIncompleteStream is returned by ChatStream when the connection ends
// before the terminator line arrives. Fragments received up to that point are
// still delivered.
var ErrIncompleteStream = errors.New("client: stream ended without terminator")

const streamTerminator = "[DONE]"

// HealthScanClient communicates with a HealthScan API server.
type HealthScanClient struct {
	baseURL    *url.URL
	httpClient HTTPClient
}

// NewHealthScanClient constructs a client using the provided base URL. A nil
// httpClient gets a default without a timeout: chat streams are open-ended,
// callers bound them with the request context instead.
func NewHealthScanClient(baseURL string, httpClient HTTPClient) (*HealthScanClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HealthScanClient{baseURL: parsed, httpClient: httpClient}, nil
}

// AnalyzeFood submits one encoded food image for analysis.
func (c *HealthScanClient) AnalyzeFood(ctx context.Context, req nutrition.AnalysisRequest) (nutrition.AnalysisResult, error) {
	var result nutrition.AnalysisResult
	if err := c.postJSON(ctx, "/analyze-food", req, &result); err != nil {
		return nutrition.AnalysisResult{}, err
	}
	return result, nil
}

// Chat requests a complete, non-streamed reply.
func (c *HealthScanClient) Chat(ctx context.Context, req nutrition.ChatRequest) (nutrition.ChatResponse, error) {
	off := false
	req.Stream = &off
	var resp nutrition.ChatResponse
	if err := c.postJSON(ctx, "/chat", req, &resp); err != nil {
		return nutrition.ChatResponse{}, err
	}
	return resp, nil
}

// ChatStream requests a streamed reply and invokes onFragment for each
// fragment in arrival order. It returns nil once the terminator line is seen;
// a stream that ends without one yields ErrIncompleteStream.
func (c *HealthScanClient) ChatStream(ctx context.Context, req nutrition.ChatRequest, onFragment func(nutrition.StreamFragment) error) error {
	on := true
	req.Stream = &on

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/chat"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == streamTerminator {
			return nil
		}
		var fragment nutrition.StreamFragment
		if err := json.Unmarshal([]byte(payload), &fragment); err != nil {
			// Malformed line, skip it: the stream itself is still usable.
			continue
		}
		if onFragment != nil {
			if err := onFragment(fragment); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("client: read stream: %w", err)
	}
	return ErrIncompleteStream
}

// Health fetches the service health document.
func (c *HealthScanClient) Health(ctx context.Context) (map[string]any, error) {
	var doc map[string]any
	if err := c.getJSON(ctx, "/health", &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Models fetches the model catalog.
func (c *HealthScanClient) Models(ctx context.Context) (nutrition.ModelsResponse, error) {
	var resp nutrition.ModelsResponse
	if err := c.getJSON(ctx, "/models", &resp); err != nil {
		return nutrition.ModelsResponse{}, err
	}
	return resp, nil
}

func (c *HealthScanClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HealthScanClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HealthScanClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func (c *HealthScanClient) decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("client: server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("client: server returned %d", resp.StatusCode)
}

func (c *HealthScanClient) endpoint(path string) string {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String()
}

// WaitHealthy polls /health until the service answers or the context expires.
// Useful for tests and startup orchestration.
func (c *HealthScanClient) WaitHealthy(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	for {
		if _, err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
