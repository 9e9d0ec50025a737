package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/adapter/canned"
	"github.com/healthscan-ai/healthscan-api/internal/adapter/fallback"
	"github.com/healthscan-ai/healthscan-api/internal/adapter/gemini"
	"github.com/healthscan-ai/healthscan-api/internal/analysis"
	"github.com/healthscan-ai/healthscan-api/internal/config"
	"github.com/healthscan-ai/healthscan-api/internal/health"
	"github.com/healthscan-ai/healthscan-api/internal/httpserver"
	"github.com/healthscan-ai/healthscan-api/internal/logging"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
	"github.com/healthscan-ai/healthscan-api/internal/ratelimit"
	"github.com/healthscan-ai/healthscan-api/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Rotating file logging when log_file is set; stdout stays mirrored for
	// foreground runs.
	const maxLogBytes = int64(300 * 1024 * 1024) // 300MB
	logTarget := strings.TrimSpace(cfg.LogFile)
	if logTarget != "" {
		rot, err := logging.NewRotatingWriter(logTarget, maxLogBytes)
		if err != nil {
			log.Fatalf("init rotating log: %v", err)
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rot))
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		log.SetPrefix("[healthscand] ")
		defer rot.Close()
	}

	log.Printf("HealthScan AI API %s starting env=%s", version.Info(), cfg.Environment)

	// Adapter chain: Gemini first when a key is present, canned replies as the
	// terminal link. The canned adapter never fails, so chat stays usable even
	// with no upstream at all.
	cannedAdapter := canned.NewWithTick(cfg.Chat.Tick())
	var chatAdapter adapter.ChatAdapter
	var visionAdapter adapter.VisionAdapter

	if strings.TrimSpace(cfg.Gemini.APIKey) != "" {
		ga, err := gemini.New(gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			BaseURL:        cfg.Gemini.BaseURL,
			VisionModel:    cfg.Gemini.VisionModel,
			ChatModel:      cfg.Gemini.ChatModel,
			RequestTimeout: cfg.Gemini.RequestTimeout(),
		})
		if err != nil {
			log.Fatalf("gemini adapter init failed: %v", err)
		}
		visionAdapter = ga
		if cfg.Chat.FallbackOn() {
			chain, err := fallback.New(ga, cannedAdapter)
			if err != nil {
				log.Fatalf("fallback chain init failed: %v", err)
			}
			chain.SetLogger(log.New(log.Writer(), "[healthscand/fallback] ", log.LstdFlags|log.Lmicroseconds))
			chatAdapter = chain
		} else {
			chatAdapter = ga
		}
	} else {
		log.Printf("no Gemini API key configured; chat serves canned replies and analysis is disabled")
		chatAdapter = cannedAdapter
	}

	var analyzer *analysis.Analyzer
	if visionAdapter != nil {
		analyzer = analysis.New(visionAdapter, cfg.Gemini.VisionModel)
		analyzer.SetLogger(log.New(log.Writer(), "[healthscand/analysis] ", log.LstdFlags|log.Lmicroseconds))
	}

	checker := health.New(health.Config{
		UpstreamName: "gemini",
		UpstreamURL:  cfg.Gemini.BaseURL,
		HTTPTimeout:  5 * time.Second,
	})

	httpSrv := httpserver.New(chatAdapter, analyzer, checker)
	httpSrv.SetModels(nutrition.ModelCatalog{
		Vision: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
		Chat:   []string{"gemini-2.5-flash", "gemini-2.5-pro"},
	}, cfg.Gemini.VisionModel, cfg.Gemini.ChatModel)
	httpSrv.SetCORS(cfg.CORS.Origins())
	httpSrv.SetLogger(cfg.LogLevel, log.New(log.Writer(), "[healthscand/http] ", log.LstdFlags|log.Lmicroseconds))

	if cfg.RateLimit.On() {
		limiter := ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
		})
		defer limiter.Close()
		rlLogger := log.New(log.Writer(), "[healthscand/ratelimit] ", log.LstdFlags|log.Lmicroseconds)
		httpSrv.SetRateLimit(ratelimit.NewMiddleware(limiter, true, rlLogger, httpSrv.Collector().RecordRateLimitHit))
	}

	// WriteTimeout stays zero: chat streams are open-ended and paced by the
	// producer, a server-side write deadline would cut them mid-reply.
	srv := &http.Server{
		Addr:        cfg.HTTPAddress,
		Handler:     httpSrv.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("healthscan server listening on %s", cfg.HTTPAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	<-sigs

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
