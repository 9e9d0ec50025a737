package protocol

import "net/http"

// EndpointRoute binds one handler to a method and path.
type EndpointRoute struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Endpoint is a named bundle of routes registered together on a router.
type Endpoint interface {
	Name() string
	Routes() []EndpointRoute
}
