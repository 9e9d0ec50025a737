// Package healthscan is the public client surface for the HealthScan API.
// It re-exports the internal client and request/response types so downstream
// integrations never import internal packages directly.
package healthscan

import (
	"github.com/healthscan-ai/healthscan-api/internal/client"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

type Client = client.HealthScanClient
type HTTPClient = client.HTTPClient

// ErrIncompleteStream reports a chat stream that ended without its
// terminator line.
var ErrIncompleteStream = client.ErrIncompleteStream

func NewClient(baseURL string, httpClient client.HTTPClient) (*client.HealthScanClient, error) {
	return client.NewHealthScanClient(baseURL, httpClient)
}

type ChatMessage = nutrition.ChatMessage
type ChatRequest = nutrition.ChatRequest
type ChatResponse = nutrition.ChatResponse
type StreamFragment = nutrition.StreamFragment
type AnalysisContext = nutrition.AnalysisContext
type AnalysisRequest = nutrition.AnalysisRequest
type AnalysisResult = nutrition.AnalysisResult
type MacroBreakdown = nutrition.MacroBreakdown
type ModelsResponse = nutrition.ModelsResponse
