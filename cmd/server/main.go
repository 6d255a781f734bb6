package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examstruct/internal/api"
	"examstruct/internal/config"
	"examstruct/internal/oracle"
	"examstruct/internal/pipeline"
	"examstruct/internal/store"
	"examstruct/internal/structure"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The oracle is optional: without a key the pipeline runs on pattern
	// detection alone.
	var claude *oracle.ClaudeClient
	var orc oracle.Oracle
	if cfg.AnthropicAPIKey != "" {
		claude = oracle.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxPromptChars, cfg.OracleTimeout)
		orc = claude
	} else {
		log.Warn("no ANTHROPIC_API_KEY set, running without oracle")
	}

	var st *store.Client
	if cfg.StoreURL != "" {
		st = store.NewClient(cfg.StoreURL, cfg.StoreAPIKey)
	}

	recoverCfg := structure.DefaultConfig()
	recoverCfg.AdjacencyOrder = cfg.AdjacencyOrder
	recoverCfg.AdjacencyWindow = cfg.AdjacencyWindow
	recoverCfg.MinExerciseChars = cfg.MinExerciseChars
	recoverCfg.MinPageChars = cfg.MinPageChars
	recoverCfg.MinStructuralSpan = cfg.MinStructuralSpan
	recoverCfg.PatternPrefixChars = cfg.PatternPrefixChars

	orch := pipeline.NewOrchestrator(pipeline.Options{
		WorkerCount:      cfg.WorkerCount,
		MaxQueueSize:     cfg.MaxQueueSize,
		JobTTL:           cfg.JobTTL,
		PatternCacheSize: cfg.PatternCacheSize,
		RecoverConfig:    recoverCfg,
	}, orc, st, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, claude, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if claude != nil {
			claude.Close()
		}
		if st != nil {
			st.Close()
		}
	}()

	log.Info("starting examstruct", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
