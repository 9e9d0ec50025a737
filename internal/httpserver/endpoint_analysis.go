package httpserver

import (
	"net/http"

	"github.com/healthscan-ai/healthscan-api/internal/httpserver/protocol"
)

type analysisEndpoint struct {
	server *Server
}

func newAnalysisEndpoint(server *Server) protocol.Endpoint {
	return &analysisEndpoint{server: server}
}

func (e *analysisEndpoint) Name() string { return "analysis" }

func (e *analysisEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodPost, Path: "/analyze-food", Handler: http.HandlerFunc(e.server.HandleAnalyzeFood)},
	}
}
