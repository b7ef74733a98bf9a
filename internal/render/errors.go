package render

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoScenes is returned when a job is compiled from an empty timeline.
	ErrNoScenes = errors.New("timeline has no scenes")
	// ErrMissingAsset is returned when an input file does not exist.
	ErrMissingAsset = errors.New("missing asset")
	// ErrInvalidGraph is returned when the filtergraph fails validation.
	ErrInvalidGraph = errors.New("invalid filter graph")
	// ErrOutputMissing is returned when the encoder exits cleanly without output.
	ErrOutputMissing = errors.New("encoder produced no output")
	// ErrEncoderNotFound is returned when a required binary is not on PATH.
	ErrEncoderNotFound = errors.New("encoder binary not found")
)

// EncoderError is a non-zero exit of the encoder. Stderr holds the
// diagnostic text captured from the process.
type EncoderError struct {
	ExitCode int
	Reason   string
	Stderr   string
	Err      error
}

func (e *EncoderError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if last := LastLines(e.Stderr, 1); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *EncoderError) Unwrap() error { return e.Err }

// Pre-compiled patterns that classify common encoder failures. Checked in order.
var stderrReasons = []struct {
	reason string
	re     *regexp.Regexp
}{
	{"missing_input", regexp.MustCompile(`(?i)No such file or directory|does not exist`)},
	{"filter_graph", regexp.MustCompile(`(?i)Error (initializing|configuring) (complex )?filter|Invalid stream specifier|No such filter|matches no streams|Error parsing filterchain`)},
	{"unknown_encoder", regexp.MustCompile(`(?i)Unknown encoder|Encoder not found`)},
	{"invalid_data", regexp.MustCompile(`(?i)Invalid data found when processing input`)},
	{"disk_full", regexp.MustCompile(`(?i)No space left on device`)},
}

// ClassifyStderr returns a short reason for a failed encode, or "unknown".
func ClassifyStderr(stderr string) string {
	for _, r := range stderrReasons {
		if r.re.MatchString(stderr) {
			return r.reason
		}
	}
	return "unknown"
}

// LastLines returns the last n non-empty lines of s joined by " | ".
func LastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append([]string{l}, out...)
		}
	}
	return strings.Join(out, " | ")
}
