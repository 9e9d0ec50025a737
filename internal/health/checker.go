package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult holds the result of a single health check.
type CheckResult struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// Component is a named, typed check result.
type Component struct {
	Name string `json:"name"`
	Type string `json:"type"` // http, internal, etc.
	CheckResult
}

// Checker probes the upstream generation collaborator. There are no databases
// to check: all request state is held in memory for one exchange.
type Checker struct {
	upstreamName string
	upstreamURL  string
	httpTimeout  time.Duration
	client       *http.Client
}

// Config holds health checker configuration.
type Config struct {
	UpstreamName string
	UpstreamURL  string
	HTTPTimeout  time.Duration
}

// New creates a new health checker.
func New(cfg Config) *Checker {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	name := cfg.UpstreamName
	if name == "" {
		name = "upstream"
	}
	return &Checker{
		upstreamName: name,
		upstreamURL:  cfg.UpstreamURL,
		httpTimeout:  cfg.HTTPTimeout,
		client:       &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// CheckUpstream probes the upstream base URL. Any HTTP response counts as
// reachable; only transport-level failures mark the component unhealthy.
func (c *Checker) CheckUpstream(ctx context.Context) Component {
	comp := Component{Name: c.upstreamName, Type: "http"}
	comp.Timestamp = time.Now().UTC()

	if c.upstreamURL == "" {
		comp.Status = StatusDegraded
		comp.Message = "no upstream configured"
		return comp
	}

	ctx, cancel := context.WithTimeout(ctx, c.httpTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.upstreamURL, nil)
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		return comp
	}
	resp, err := c.client.Do(req)
	comp.Latency = time.Since(start)
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		return comp
	}
	defer resp.Body.Close()

	comp.Status = StatusHealthy
	comp.Message = fmt.Sprintf("reachable (http %d)", resp.StatusCode)
	return comp
}

// CheckAll runs every check and reduces the results to an overall status.
func (c *Checker) CheckAll(ctx context.Context) ([]Component, Status) {
	components := []Component{c.CheckUpstream(ctx)}

	overall := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return components, overall
}
