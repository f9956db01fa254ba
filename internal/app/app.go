package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"creative-pipeline/internal/api"
	"creative-pipeline/internal/assembler"
	"creative-pipeline/internal/cache"
	"creative-pipeline/internal/compliance"
	"creative-pipeline/internal/config"
	"creative-pipeline/internal/pipeline"
	"creative-pipeline/internal/provider"
	"creative-pipeline/internal/runner"
	"creative-pipeline/internal/storage"
)

// BuildOrchestrator wires the generation chain, scorer and assembler from
// one config value. Shared by the service and the CLI runner.
func BuildOrchestrator(cfg config.Config) (*pipeline.Orchestrator, error) {
	rules, err := compliance.NewRuleSet(cfg.Compliance.CulturalRules)
	if err != nil {
		return nil, err
	}
	scorer := compliance.NewScorer(compliance.Config{
		Weights: compliance.Weights{
			Visual:    cfg.Compliance.WeightVisual,
			Content:   cfg.Compliance.WeightContent,
			Cultural:  cfg.Compliance.WeightCultural,
			Technical: cfg.Compliance.WeightTechnical,
		},
		MinScore:         cfg.Compliance.MinScore,
		LocalizationCap:  cfg.Compliance.LocalizationCap,
		MinWidth:         cfg.Compliance.MinWidth,
		MinHeight:        cfg.Compliance.MinHeight,
		MaxFileSizeMB:    cfg.Compliance.MaxFileSizeMB,
		PaletteTolerance: cfg.Compliance.PaletteTolerance,
		PaletteCoverage:  cfg.Compliance.PaletteCoverage,
	}, rules)

	chain := provider.NewChain(
		provider.RetryPolicy{
			MaxRetries:  cfg.Providers.MaxRetries,
			BaseBackoff: cfg.ProviderBackoff(),
		},
		cfg.Providers.MaxInFlight,
		provider.Slot{Variant: provider.VariantPrimary, Provider: provider.NewGeminiProvider(
			cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model, cfg.Providers.Gemini.Endpoint, cfg.ProviderTimeout())},
		provider.Slot{Variant: provider.VariantSecondary, Provider: provider.NewStabilityProvider(
			cfg.Providers.Stability.APIKey, cfg.Providers.Stability.Engine, cfg.Providers.Stability.Endpoint, cfg.ProviderTimeout())},
		provider.Slot{Variant: provider.VariantFallback, Provider: provider.NewStaticLibrary(cfg.Providers.AssetDir)},
	)

	asmCfg := assembler.Config{MaxOverlayFraction: cfg.Assembler.MaxOverlayFraction}
	return pipeline.New(chain, scorer, asmCfg, cfg.Pipeline.Concurrency), nil
}

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, err := BuildOrchestrator(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline")
	}

	// Archive is optional: without Postgres, reports stay in memory.
	var store *storage.Store
	var archive runner.Archive
	if cfg.Postgres.Host != "" {
		store, err = storage.New(rootCtx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init storage")
		}
		defer store.Close()
		archive = store
	}

	registry := storage.NewRegistry()
	latest := &cache.Snapshot[pipeline.Report]{}
	run := runner.New(orch, registry, latest, archive, cfg.Pipeline.QueueCapacity)
	go run.Loop(rootCtx)

	h := api.NewCampaignHandler(registry, latest, run)
	if store != nil {
		h.History = store
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop the runner
	_ = srv.Shutdown(shCtx)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
