package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/analysis"
	"github.com/healthscan-ai/healthscan-api/internal/health"
	"github.com/healthscan-ai/healthscan-api/internal/httpserver/protocol"
	"github.com/healthscan-ai/healthscan-api/internal/metrics"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
	"github.com/healthscan-ai/healthscan-api/internal/ratelimit"
	"github.com/healthscan-ai/healthscan-api/internal/version"
)

var defaultEndpointKeys = []string{"chat", "analysis", "models", "health", "metrics"}

// Server exposes the HealthScan REST and streaming endpoints.
type Server struct {
	chat     adapter.ChatAdapter
	analyzer *analysis.Analyzer
	checker  *health.Checker

	visionModel string
	chatModel   string
	catalog     nutrition.ModelCatalog

	collector *metrics.Collector
	limiter   *ratelimit.Middleware

	corsOrigins []string

	logger   *log.Logger
	logLevel string

	endpointKeys []string
}

// New constructs a Server with the required dependencies. chatAdapter is
// asserted for streaming support per request, so a non-streaming adapter
// still works with the aggregate path.
func New(chatAdapter adapter.ChatAdapter, analyzer *analysis.Analyzer, checker *health.Checker) *Server {
	s := &Server{
		chat:      chatAdapter,
		analyzer:  analyzer,
		checker:   checker,
		collector: metrics.NewCollector(),
	}
	s.SetEndpointConfig(nil)
	return s
}

// SetModels configures the reported model catalog and active models.
func (s *Server) SetModels(catalog nutrition.ModelCatalog, visionModel, chatModel string) {
	s.catalog = catalog
	s.visionModel = visionModel
	s.chatModel = chatModel
}

// SetCORS configures allowed browser origins.
func (s *Server) SetCORS(origins []string) {
	s.corsOrigins = origins
}

// SetRateLimit attaches a rate limiting middleware.
func (s *Server) SetRateLimit(m *ratelimit.Middleware) {
	s.limiter = m
}

// SetLogger attaches a logger and level. Level "debug" enables debugf output.
func (s *Server) SetLogger(level string, logger *log.Logger) {
	s.logLevel = strings.ToLower(strings.TrimSpace(level))
	if logger != nil {
		s.logger = logger
	}
}

// SetEndpointConfig configures which endpoint bundles are exposed.
func (s *Server) SetEndpointConfig(keys []string) {
	s.endpointKeys = normalizeEndpointKeys(keys, defaultEndpointKeys)
}

// Collector exposes the metrics collector for wiring callbacks.
func (s *Server) Collector() *metrics.Collector {
	return s.collector
}

// Router returns a configured chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.limiter != nil {
		r.Use(s.limiter.Wrap)
	}

	s.registerEndpointKeys(r, s.endpointKeys...)
	return r
}

func (s *Server) registerEndpointKeys(r chi.Router, keys ...string) int {
	var endpoints []protocol.Endpoint
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if ep := s.endpointByKey(key); ep != nil {
			endpoints = append(endpoints, ep)
		} else if s.isDebug() {
			s.debugf("endpoint %s unavailable, skipping registration", key)
		}
	}
	for _, ep := range endpoints {
		s.debugf("registering endpoint %s", ep.Name())
		for _, route := range ep.Routes() {
			r.Method(route.Method, route.Path, route.Handler)
		}
	}
	return len(endpoints)
}

func (s *Server) endpointByKey(key string) protocol.Endpoint {
	switch key {
	case "chat", "assistant":
		return newChatEndpoint(s)
	case "analysis", "analyze":
		return newAnalysisEndpoint(s)
	case "models":
		return newModelsEndpoint(s)
	case "health", "status":
		return newHealthEndpoint(s)
	case "metrics":
		return newMetricsEndpoint(s)
	default:
		return nil
	}
}

// HandleHealth reports service and upstream status. It always answers 200;
// the body carries the actual status, mirroring how the scan UI polls it.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":  string(health.StatusHealthy),
		"service": "HealthScan AI API",
		"version": version.Info(),
		"time":    time.Now().UTC().Format(time.RFC3339),
		"models": map[string]string{
			"vision": s.visionModel,
			"chat":   s.chatModel,
		},
	}
	if s.checker != nil {
		components, overall := s.checker.CheckAll(r.Context())
		payload["status"] = string(overall)
		payload["components"] = components
	}
	s.respondJSON(w, http.StatusOK, payload)
}

// HandleModels lists the available models and the active configuration.
func (s *Server) HandleModels(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, nutrition.NewModelsResponse(s.catalog, s.visionModel, s.chatModel))
}

// HandleMetrics serves the Prometheus text exposition.
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(metrics.FormatPrometheus(s.collector.GetSnapshot())))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.respondJSON(w, status, map[string]any{"error": err.Error()})
}

func (s *Server) isDebug() bool { return s.logLevel == "debug" }

func (s *Server) debugf(format string, args ...any) {
	if s.logger != nil && s.isDebug() {
		s.logger.Printf("DEBUG "+format, args...)
	}
}

func normalizeEndpointKeys(list []string, defaults []string) []string {
	if len(list) == 0 {
		list = defaults
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, key := range list {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
