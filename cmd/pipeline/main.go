package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"creative-pipeline/internal/app"
	"creative-pipeline/internal/brief"
	"creative-pipeline/internal/config"
	"creative-pipeline/internal/pipeline"
)

func main() {
	briefPath := flag.String("brief", "campaign_brief.yaml", "campaign brief file")
	outDir := flag.String("out", "", "output directory (overrides config)")
	flag.Parse()

	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	if *outDir != "" {
		cfg.Pipeline.OutputDir = *outDir
	}

	b, err := brief.LoadFile(*briefPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *briefPath).Msg("load brief")
	}

	orch, err := app.BuildOrchestrator(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := orch.Run(ctx, b)
	if err != nil {
		log.Fatal().Err(err).Msg("run campaign")
	}

	if err := writeOutputs(cfg.Pipeline.OutputDir, report); err != nil {
		log.Fatal().Err(err).Msg("write outputs")
	}

	fmt.Print(report.Render())
	if report.Summary.Unrecoverable > 0 {
		os.Exit(1)
	}
}

// writeOutputs lays the run out on disk: one PNG per finished item plus the
// machine-readable report next to them.
func writeOutputs(dir string, report *pipeline.Report) error {
	runDir := filepath.Join(dir, report.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	for _, it := range report.Items {
		if it.Asset == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(runDir, it.Asset.OutputRef), it.Asset.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", it.Asset.OutputRef, err)
		}
	}
	enc, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(runDir, "report.json"), enc, 0o644); err != nil {
		return err
	}
	log.Info().Str("dir", runDir).Int("assets", report.Summary.Done).Msg("outputs written")
	return nil
}
