package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shorts-pipeline/internal/bgm"
	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/logging"
	"shorts-pipeline/internal/metrics"
	"shorts-pipeline/internal/overlay"
	"shorts-pipeline/internal/probe"
	"shorts-pipeline/internal/render"
	"shorts-pipeline/internal/timeline"
	"shorts-pipeline/internal/types"
	"shorts-pipeline/internal/workspace"
)

// ErrInvalidStory is returned for stories that cannot be composed at all.
var ErrInvalidStory = errors.New("invalid story")

// DurationProber measures the narration.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Runner executes a compiled job.
type Runner interface {
	Run(ctx context.Context, job *render.Job) error
}

// MusicResolver picks the background track for a category.
type MusicResolver interface {
	Resolve(category string) (string, bool)
}

// OverlayRenderer draws caption layers and thumbnails.
type OverlayRenderer interface {
	RenderCaption(text, outPath string) (overlay.CaptionReport, error)
	RenderThumbnail(imagePath, title, outPath string) error
	FontMissing() bool
}

// Engine composes one story at a time into a finished video. It holds no
// per-story state, so one Engine can serve parallel stories.
type Engine struct {
	cfg      *config.Config
	settings render.Settings
	recon    timeline.Options
	log      *zap.Logger

	prober   DurationProber
	runner   Runner
	music    MusicResolver
	overlays OverlayRenderer
	metrics  *metrics.Recorder
	dryRun   bool
}

// Option overrides one collaborator of the Engine.
type Option func(*Engine)

// WithProber replaces the ffprobe-backed narration duration reader.
func WithProber(p DurationProber) Option { return func(e *Engine) { e.prober = p } }

// WithRunner replaces the ffmpeg executor.
func WithRunner(r Runner) Option { return func(e *Engine) { e.runner = r } }

// WithMusicResolver replaces the BGM directory lookup.
func WithMusicResolver(m MusicResolver) Option { return func(e *Engine) { e.music = m } }

// WithOverlayRenderer replaces the caption and thumbnail renderer.
func WithOverlayRenderer(o OverlayRenderer) Option { return func(e *Engine) { e.overlays = o } }

// WithMetrics shares a Recorder with the caller, typically the batch runner.
func WithMetrics(m *metrics.Recorder) Option { return func(e *Engine) { e.metrics = m } }

// WithDryRun compiles jobs and logs the encoder command without running it.
func WithDryRun(dry bool) Option { return func(e *Engine) { e.dryRun = dry } }

// New builds an Engine from cfg. Collaborators default to ffprobe, ffmpeg,
// the BGM directory and the configured font; options replace them.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) *Engine {
	log = logging.Stage(log, "compose")
	e := &Engine{
		cfg:      cfg,
		settings: render.SettingsFromConfig(cfg),
		recon: timeline.Options{
			FloorSec:   cfg.Timeline.FloorSec,
			EpsilonSec: cfg.Timeline.EpsilonSec,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prober == nil {
		e.prober = probe.FFprobe{Bin: cfg.Encoder.FFprobeBin}
	}
	if e.runner == nil {
		e.runner = render.NewExecutor(cfg.Encoder, log)
	}
	if e.music == nil {
		e.music = bgm.NewResolver(cfg.Paths.BGMDir, log)
	}
	if e.overlays == nil {
		e.overlays = overlay.NewRenderer(overlay.OptionsFromConfig(cfg), log)
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	return e
}

// Compose runs reconcile, caption rendering, compile and encode for one
// story. Degradations are logged and recorded on the result; any fatal
// error is returned and also recorded on the result with status failed.
// The story's temporary files are removed before Compose returns.
func (e *Engine) Compose(ctx context.Context, story types.Story) (res types.StoryResult, err error) {
	log := e.log.With(zap.String("story_id", story.ID))
	res = types.StoryResult{
		StoryID:   story.ID,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	defer func() {
		res.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		if err != nil {
			res.Status = types.StatusFailed
			res.Error = err.Error()
			log.Error("story failed", zap.Error(err))
		}
	}()

	if strings.TrimSpace(story.ID) == "" {
		return res, fmt.Errorf("%w: empty id", ErrInvalidStory)
	}
	if len(story.Scenes) == 0 {
		return res, fmt.Errorf("story %s: %w", story.ID, render.ErrNoScenes)
	}
	if err := e.checkDurations(story.Scenes, log); err != nil {
		return res, err
	}
	if err := os.MkdirAll(e.cfg.Paths.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}

	ws, err := workspace.Acquire(e.cfg.Paths.TempDir, story.ID)
	if err != nil {
		return res, err
	}
	defer ws.Release(log)
	log.Debug("workspace acquired", zap.String("dir", ws.Dir()))

	// each reason is recorded once per story
	degrade := func(reason string) {
		if slices.Contains(res.Degraded, reason) {
			return
		}
		res.Degraded = append(res.Degraded, reason)
		e.metrics.Degraded(reason)
	}

	// --- Timeline ---
	audio := types.AudioAssets{NarrationPath: story.NarrationPath}
	var rec timeline.Result
	if dur, perr := e.prober.Duration(ctx, story.NarrationPath); perr != nil {
		log.Warn("narration duration unknown, keeping nominal scene durations", zap.Error(perr))
		degrade(types.DegradedNarrationProbe)
		rec = timeline.Result{Timeline: timeline.Unreconciled(story.Scenes), Outcome: timeline.Skipped}
	} else {
		audio.NarrationSec = dur
		rec = timeline.Reconcile(story.Scenes, dur, e.recon)
		if rec.Outcome == timeline.Clamped {
			log.Warn("last scene clamped at floor, video runs past narration",
				zap.Float64("narration_sec", dur),
				zap.Float64("gap_sec", rec.GapSec),
			)
			degrade(types.DegradedClamped)
		}
	}
	e.metrics.Reconciled(rec.Outcome.String())
	tl := rec.Timeline
	log.Info("timeline ready",
		zap.String("outcome", rec.Outcome.String()),
		zap.Int("scenes", len(tl.Scenes)),
		zap.Float64("total_sec", tl.TotalDuration()),
		zap.Float64("narration_sec", audio.NarrationSec),
	)

	// --- Background music ---
	if track, ok := e.music.Resolve(story.Category); ok {
		audio.BGMPath = track
	} else if strings.TrimSpace(story.Category) != "" {
		degrade(types.DegradedBGMMissing)
	}
	res.BGMPath = audio.BGMPath

	// --- Captions ---
	if e.overlays.FontMissing() {
		degrade(types.DegradedFontMissing)
	}
	scenes := make([]render.SceneInput, len(tl.Scenes))
	for i, sc := range tl.Scenes {
		capPath, err := ws.Path(fmt.Sprintf("caption_%03d.png", i))
		if err != nil {
			return res, err
		}
		rep, err := e.overlays.RenderCaption(sc.Caption, capPath)
		if err != nil {
			return res, fmt.Errorf("scene %d caption: %w", i, err)
		}
		if rep.Pinned {
			degrade(types.DegradedCaptionPinned)
		}
		if rep.MissingGlyphs > 0 {
			degrade(types.DegradedGlyphsMissing)
		}
		scenes[i] = render.SceneInput{
			ImagePath:   sc.ImagePath,
			CaptionPath: capPath,
			DurationSec: sc.DurationSec,
		}
	}

	// --- Compile ---
	name := workspace.OutputName(story.ID)
	job, err := render.Compile(render.CompileSpec{
		Scenes:        scenes,
		NarrationPath: audio.NarrationPath,
		BGMPath:       audio.BGMPath,
		OutputPath:    filepath.Join(e.cfg.Paths.OutputDir, name+".mp4"),
	}, e.settings)
	if err != nil {
		return res, fmt.Errorf("compile: %w", err)
	}
	res.Frames = job.FrameCount()
	res.DurationSec = job.DurationSec()

	if e.dryRun {
		log.Info("dry run, encoder not started", zap.String("cmd", job.CommandLine(e.cfg.Encoder.FFmpegBin)))
		res.Status = types.StatusPlanned
		return res, nil
	}

	// --- Encode ---
	// ffmpeg writes to a private partial file; only a finished render
	// replaces the final path, and a failure removes nothing but its own file.
	final := job.OutputPath
	job.OutputPath = partialPath(final)
	start := time.Now()
	if err := e.runner.Run(ctx, job); err != nil {
		removePartial(job.OutputPath, log)
		return res, fmt.Errorf("render: %w", err)
	}
	if err := os.Rename(job.OutputPath, final); err != nil {
		removePartial(job.OutputPath, log)
		return res, fmt.Errorf("publish output: %w", err)
	}
	job.OutputPath = final
	e.metrics.Rendered(time.Since(start).Seconds(), job.FrameCount())
	res.VideoPath = final

	// --- Thumbnail ---
	if e.cfg.Thumbnail.Enabled {
		thumb := filepath.Join(e.cfg.Paths.OutputDir, name+"_thumb.png")
		if err := e.overlays.RenderThumbnail(tl.Scenes[0].ImagePath, story.Title, thumb); err != nil {
			log.Warn("thumbnail failed", zap.Error(err))
			degrade(types.DegradedThumbnail)
		} else {
			res.ThumbnailPath = thumb
		}
	}

	res.Status = types.StatusSucceeded
	log.Info("story rendered",
		zap.String("video", res.VideoPath),
		zap.Int("frames", res.Frames),
		zap.Float64("duration_sec", res.DurationSec),
		zap.Strings("degraded", res.Degraded),
	)
	return res, nil
}

// checkDurations rejects durations no timeline can hold and warns about
// scenes that arrive shorter than the floor. Reconciliation only ever
// changes the last scene, so those stay short.
func (e *Engine) checkDurations(scenes []types.Scene, log *zap.Logger) error {
	for i, sc := range scenes {
		d := sc.DurationSec
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return fmt.Errorf("%w: scene %d duration %v", ErrInvalidStory, i, d)
		}
		if d < e.recon.FloorSec {
			log.Warn("scene shorter than floor",
				zap.Int("scene", i),
				zap.Float64("duration_sec", d),
				zap.Float64("floor_sec", e.recon.FloorSec),
			)
		}
	}
	return nil
}

// partialPath is a hidden sibling of final, unique per attempt. The .mp4
// suffix is kept so ffmpeg still picks the container from the name.
func partialPath(final string) string {
	dir, base := filepath.Split(final)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "."+stem+".partial-"+uuid.NewString()[:8]+filepath.Ext(base))
}

func removePartial(path string, log *zap.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove partial output", zap.String("path", path), zap.Error(err))
	}
}
