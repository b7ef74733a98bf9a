// Command shortsrender composes vertical short videos from a JSON manifest of
// stories: narration, one still per scene and a caption per scene.
//
//	shortsrender [-config config.yaml] [-concurrency N] [-dry-run] [-check] stories.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/engine"
	"shorts-pipeline/internal/logging"
	"shorts-pipeline/internal/metrics"
	"shorts-pipeline/internal/pipeline"
	"shorts-pipeline/internal/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	// local dev only, CI passes SHORTS_* directly
	_ = godotenv.Load()

	var (
		configPath  = flag.String("config", "", "YAML config file (defaults apply when empty)")
		concurrency = flag.Int("concurrency", 0, "stories composed in parallel (overrides batch.concurrency)")
		dryRun      = flag.Bool("dry-run", false, "compile jobs and print the ffmpeg command without encoding")
		checkOnly   = flag.Bool("check", false, "verify ffmpeg and ffprobe are installed, then exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] stories.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shortsrender: %v\n", err)
		return 1
	}
	if *concurrency > 0 {
		cfg.Batch.Concurrency = *concurrency
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shortsrender: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if *checkOnly || !*dryRun {
		if err := render.CheckDeps(cfg.Encoder); err != nil {
			log.Error("dependency check failed", zap.Error(err))
			return 1
		}
		if *checkOnly {
			log.Info("ffmpeg and ffprobe found",
				zap.String("ffmpeg", cfg.Encoder.FFmpegBin),
				zap.String("ffprobe", cfg.Encoder.FFprobeBin),
			)
			return 0
		}
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	stories, err := pipeline.LoadStories(flag.Arg(0))
	if err != nil {
		log.Error("cannot load stories", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()[:8]
	log = log.With(zap.String("run_id", runID))
	log.Info("shorts render starting",
		zap.Int("stories", len(stories)),
		zap.String("output_dir", cfg.Paths.OutputDir),
		zap.Bool("dry_run", *dryRun),
	)

	rec := metrics.New()
	eng := engine.New(cfg, log, engine.WithMetrics(rec), engine.WithDryRun(*dryRun))
	sum := pipeline.Run(ctx, eng, stories, pipeline.Options{
		RunID:       runID,
		Concurrency: cfg.Batch.Concurrency,
		Metrics:     rec,
	}, log)

	if path, err := pipeline.SaveSummary(sum, cfg.Paths.OutputDir); err != nil {
		log.Warn("could not save run summary", zap.Error(err))
	} else {
		log.Info("run summary saved", zap.String("path", path))
	}
	if err := rec.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, log); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("run interrupted")
	}
	if !sum.OK() {
		return 1
	}
	return 0
}
