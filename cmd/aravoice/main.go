package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/valleyboyzz0024-del/ara-voice/internal/archive"
	"github.com/valleyboyzz0024-del/ara-voice/internal/command"
	"github.com/valleyboyzz0024-del/ara-voice/internal/config"
	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
	"github.com/valleyboyzz0024-del/ara-voice/internal/httpapi"
	"github.com/valleyboyzz0024-del/ara-voice/internal/intent"
	"github.com/valleyboyzz0024-del/ara-voice/internal/interpret"
	"github.com/valleyboyzz0024-del/ara-voice/internal/observability"
	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
	"github.com/valleyboyzz0024-del/ara-voice/internal/session"
	"github.com/valleyboyzz0024-del/ara-voice/internal/sheets"
	"github.com/valleyboyzz0024-del/ara-voice/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	archiveStore, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive store init failed: %v", err)
	}
	defer archiveStore.Close()
	log.Printf("archive store: %s", archiveStore.Mode())

	oracleClient, err := oracle.New(oracle.Config{
		Enabled:      cfg.AIEnabled,
		Mode:         cfg.OracleMode,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		HTTPURL:      cfg.OracleHTTPURL,
		HTTPModel:    cfg.OracleModel,
		Timeout:      cfg.OracleTimeout,
		MaxTokens:    cfg.OracleMaxTokens,
	})
	if err != nil {
		log.Fatalf("oracle init failed: %v", err)
	}
	log.Printf("oracle backend: %s", oracleClient.Name())

	gateway, err := sheets.New(sheets.Config{
		Mode:    cfg.SheetsMode,
		BaseURL: cfg.SheetsBaseURL,
		APIKey:  cfg.SheetsAPIKey,
		Timeout: cfg.SheetsTimeout,
	})
	if err != nil {
		log.Fatalf("sheets gateway init failed: %v", err)
	}

	sessions := session.NewStore(cfg.SessionMaxAge, cfg.MaxHistoryLength, cfg.DefaultTab)
	sessions.SetExpireHook(func(_ string) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.Count()))
	})

	aiParser := interpret.NewParser(oracleClient, cfg.OracleMaxTokens)
	var corrector validate.Corrector
	if cfg.AIEnabled {
		corrector = aiParser
	}

	orchestrator := command.New(command.Config{
		Sessions:   sessions,
		Grammar:    grammar.NewParser(cfg.SecretPhrase),
		AI:         aiParser,
		Classifier: intent.New(oracleClient),
		Validator: validate.New(validate.Rules{
			PriceMin:        cfg.PriceMin,
			PriceMax:        cfg.PriceMax,
			AllowedStatuses: cfg.AllowedStatuses,
		}, corrector),
		Gateway:     gateway,
		Oracle:      oracleClient,
		Archive:     archiveStore,
		Metrics:     metrics,
		AIEnabled:   cfg.AIEnabled,
		CallTimeout: cfg.OracleTimeout,
		DefaultTab:  cfg.DefaultTab,
	})

	api := httpapi.New(cfg, sessions, orchestrator, archiveStore, oracleClient.Name(), metrics, log.Default())
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, cfg.SessionSweepInterval)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	sessions.Destroy()

	log.Printf("shutdown complete")
}
