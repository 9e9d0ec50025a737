package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/analysis"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// HandleAnalyzeFood is the public entry point registered on the router.
func (s *Server) HandleAnalyzeFood(w http.ResponseWriter, r *http.Request) {
	s.handleAnalyzeFood(w, r)
}

func (s *Server) handleAnalyzeFood(w http.ResponseWriter, r *http.Request) {
	reqStart := time.Now()
	s.collector.RecordRequestStart("analyze")
	defer s.collector.RecordRequestEnd("analyze")

	if s.analyzer == nil {
		s.collector.RecordError("analyze")
		s.respondError(w, http.StatusServiceUnavailable, errors.New("analysis is not configured"))
		return
	}

	var req nutrition.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.collector.RecordError("analyze")
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.ImageData == "" {
		s.collector.RecordError("analyze")
		s.respondError(w, http.StatusBadRequest, errors.New("image_data must not be empty"))
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.collector.RecordError("analyze")
		if errors.Is(err, analysis.ErrInvalidImage) {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
		s.respondError(w, http.StatusBadGateway, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
	s.collector.RecordRequest("analyze", time.Since(reqStart))
	if s.logger != nil {
		s.logger.Printf("analyze total_ms=%d score=%d calories=%d model=%s",
			time.Since(reqStart).Milliseconds(), result.HealthScore, result.EstimatedCalories, result.ModelUsed)
	}
}
