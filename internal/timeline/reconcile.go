// Package timeline fits per-scene durations to the length of the narration.
//
// Only the last scene is ever adjusted: it absorbs the whole difference
// between the narration and the sum of nominal scene durations, but never
// drops below the floor. When the floor wins, the video stays longer than
// the narration and the encoder's shortest-stream rule trims the tail.
package timeline

import (
	"math"

	"shorts-pipeline/internal/types"
)

// Options are the reconciliation constants.
type Options struct {
	FloorSec   float64 // minimum duration of an adjusted scene
	EpsilonSec float64 // differences within this tolerance are left alone
}

// DefaultOptions returns a 2.0s floor and a 0.3s tolerance.
func DefaultOptions() Options {
	return Options{FloorSec: 2.0, EpsilonSec: 0.3}
}

// Outcome says what Reconcile did.
type Outcome int

const (
	Unchanged Outcome = iota
	Adjusted
	Clamped
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Adjusted:
		return "adjusted"
	case Clamped:
		return "clamped"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result carries the reconciled timeline and what happened to it.
type Result struct {
	Timeline types.Timeline
	Outcome  Outcome
	DiffSec  float64 // narration minus nominal total
	GapSec   float64 // remaining video overrun when the floor clamped
}

// Reconcile returns a timeline whose total matches narrationSec within the
// tolerance, changing only the last scene. The input slice is not modified.
// An empty scene list is returned unchanged.
func Reconcile(scenes []types.Scene, narrationSec float64, opts Options) Result {
	tl := Unreconciled(scenes)
	if len(tl.Scenes) == 0 {
		return Result{Timeline: tl, Outcome: Unchanged}
	}

	diff := narrationSec - tl.TotalDuration()
	res := Result{Timeline: tl, DiffSec: diff}
	if math.Abs(diff) <= opts.EpsilonSec {
		res.Outcome = Unchanged
		return res
	}

	last := &tl.Scenes[len(tl.Scenes)-1]
	want := last.DurationSec + diff
	if want < opts.FloorSec {
		last.DurationSec = opts.FloorSec
		res.Outcome = Clamped
		res.GapSec = opts.FloorSec - want
		return res
	}
	last.DurationSec = want
	res.Outcome = Adjusted
	return res
}

// Unreconciled copies scenes into a timeline without touching durations.
// Used when the narration length could not be measured.
func Unreconciled(scenes []types.Scene) types.Timeline {
	out := make([]types.Scene, len(scenes))
	copy(out, scenes)
	return types.Timeline{Scenes: out}
}

// FrameCount converts a scene duration to a whole number of frames.
func FrameCount(durationSec float64, fps int) int {
	n := int(math.Round(durationSec * float64(fps)))
	if n < 1 {
		n = 1
	}
	return n
}
