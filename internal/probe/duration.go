// Package probe measures media files with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("no duration in ffprobe output")

// FFprobe runs the ffprobe binary at Bin ("ffprobe" when empty).
type FFprobe struct {
	Bin string
}

// Duration returns the container duration of path in seconds.
func (p FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return 0, fmt.Errorf("ffprobe %q: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return ParseDuration(out)
}

// ParseDuration extracts format.duration from ffprobe JSON output.
// Exported for testing without a real ffprobe binary.
func ParseDuration(data []byte) (float64, error) {
	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	s := strings.TrimSpace(raw.Format.Duration)
	if s == "" || s == "N/A" {
		return 0, ErrNoDuration
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, s)
	}
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, s)
	}
	return d, nil
}
