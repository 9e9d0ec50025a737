package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/adapter/canned"
	"github.com/healthscan-ai/healthscan-api/internal/httpserver/stream"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// fallbackMessage is streamed verbatim when no adapter can open a stream.
// It is still delivered word by word so the client renders it like any
// other reply.
const fallbackMessage = "I'm having trouble reaching the nutrition service right now. Please try again in a moment, or rescan your food item."

const fallbackTick = 40 * time.Millisecond

// HandleChat is the public entry point registered on the router.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	s.handleChat(w, r)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	reqStart := time.Now()
	s.collector.RecordRequestStart("chat")
	defer s.collector.RecordRequestEnd("chat")

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		s.collector.RecordError("chat")
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	// An empty history is valid: the producer answers it with a default
	// reply, so the caller still gets a complete stream.
	var req nutrition.ChatRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		s.collector.RecordError("chat")
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	// Streaming is the default; callers opt out with "stream": false.
	if req.WantsStream() {
		if sa, ok := s.chat.(adapter.StreamingChatAdapter); ok {
			s.handleChatStream(w, r, reqStart, req, sa)
			return
		}
		// Adapter cannot stream, answer in one piece instead.
	}

	upstreamStart := time.Now()
	resp, err := s.chat.CreateCompletion(r.Context(), req)
	if err != nil {
		s.collector.RecordError("chat")
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	upstreamDur := time.Since(upstreamStart)

	s.respondJSON(w, http.StatusOK, resp)
	s.collector.RecordRequest("chat", time.Since(reqStart))
	if s.logger != nil {
		total := time.Since(reqStart)
		s.logger.Printf("chat total_ms=%d upstream_ms=%d model=%s", total.Milliseconds(), upstreamDur.Milliseconds(), resp.ModelUsed)
	}
}

func (s *Server) handleChatStream(
	w http.ResponseWriter,
	r *http.Request,
	reqStart time.Time,
	req nutrition.ChatRequest,
	sa adapter.StreamingChatAdapter,
) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// streamID links the open/close log lines of one stream.
	streamID := uuid.New().String()
	s.collector.RecordStreamStart()

	events, err := sa.CreateCompletionStream(r.Context(), req)
	if err != nil {
		// Headers are already committed to the event-stream type, so the
		// degradation answer goes over the same framing: a fixed message
		// delivered word by word, terminated like any healthy stream.
		if s.logger != nil {
			s.logger.Printf("chat.stream id=%s open failed, serving fallback: %v", streamID, err)
		}
		s.collector.RecordFallback()
		events = canned.StreamText(r.Context(), fallbackMessage, fallbackTick)
	}

	written, relayErr := stream.Relay(r.Context(), events, w)
	s.collector.RecordStreamEnd(written, relayErr != nil)
	s.collector.RecordRequest("chat", time.Since(reqStart))

	if s.logger != nil {
		total := time.Since(reqStart)
		if relayErr != nil {
			s.logger.Printf("chat.stream id=%s total_ms=%d fragments=%d err=%v", streamID, total.Milliseconds(), written, relayErr)
		} else {
			s.logger.Printf("chat.stream id=%s total_ms=%d fragments=%d", streamID, total.Milliseconds(), written)
		}
	}
}
