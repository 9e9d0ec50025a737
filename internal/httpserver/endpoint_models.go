package httpserver

import (
	"net/http"

	"github.com/healthscan-ai/healthscan-api/internal/httpserver/protocol"
)

type modelsEndpoint struct {
	server *Server
}

func newModelsEndpoint(server *Server) protocol.Endpoint {
	return &modelsEndpoint{server: server}
}

func (e *modelsEndpoint) Name() string { return "models" }

func (e *modelsEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/models", Handler: http.HandlerFunc(e.server.HandleModels)},
	}
}
