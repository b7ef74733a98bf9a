package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/logging"
)

// Executor runs compiled jobs through the ffmpeg binary.
type Executor struct {
	bin     string
	verbose bool
	log     *zap.Logger
}

// NewExecutor creates an Executor from the encoder config.
func NewExecutor(cfg config.EncoderConfig, log *zap.Logger) *Executor {
	bin := cfg.FFmpegBin
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Executor{bin: bin, verbose: cfg.Verbose, log: logging.Stage(log, "render")}
}

// Run invokes the encoder once. Stderr is always captured; in verbose mode
// it is also tee'd to os.Stderr. A non-zero exit returns *EncoderError with
// the captured text. There is no retry.
func (e *Executor) Run(ctx context.Context, job *Job) error {
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.bin, job.Args()...)

	var stderrBuf bytes.Buffer
	if e.verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	e.log.Info("encoding",
		zap.String("output", job.OutputPath),
		zap.Int("inputs", len(job.Graph.Inputs)),
		zap.Int("frames", job.FrameCount()),
	)
	e.log.Debug("ffmpeg command", zap.String("cmd", job.CommandLine(e.bin)))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		stderr := stderrBuf.String()
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		encErr := &EncoderError{
			ExitCode: code,
			Reason:   ClassifyStderr(stderr),
			Stderr:   stderr,
			Err:      err,
		}
		e.log.Error("ffmpeg failed",
			zap.Int("exit_code", code),
			zap.String("reason", encErr.Reason),
			zap.String("stderr_tail", LastLines(stderr, 5)),
			zap.Duration("elapsed", elapsed),
		)
		return encErr
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrOutputMissing, job.OutputPath)
	}
	e.log.Info("encode finished",
		zap.String("output", job.OutputPath),
		zap.Int64("bytes", info.Size()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// CheckDeps verifies that the encoder and probe binaries are on PATH.
func CheckDeps(cfg config.EncoderConfig) error {
	for _, bin := range []string{cfg.FFmpegBin, cfg.FFprobeBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrEncoderNotFound, bin)
		}
	}
	return nil
}
