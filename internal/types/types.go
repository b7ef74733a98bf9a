package types

// Scene is one still image shown for a fixed time with a caption over it
type Scene struct {
	ImagePath   string  `json:"image_path"`
	Caption     string  `json:"text"`
	DurationSec float64 `json:"duration_sec"`
}

// Story is the typed input handed to the composition engine by upstream stages
type Story struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Category      string  `json:"category"` // BGM category tag, may be empty
	NarrationPath string  `json:"narration_path"`
	Scenes        []Scene `json:"scenes"`
}

// Timeline is the ordered scene list after duration reconciliation
type Timeline struct {
	Scenes []Scene `json:"scenes"`
}

// TotalDuration returns the sum of all scene durations in seconds.
func (t Timeline) TotalDuration() float64 {
	var total float64
	for _, s := range t.Scenes {
		total += s.DurationSec
	}
	return total
}

// AudioAssets holds the audio inputs of one render
type AudioAssets struct {
	NarrationPath string  `json:"narration_path"`
	NarrationSec  float64 `json:"narration_sec"`      // zero when the duration could not be read
	BGMPath       string  `json:"bgm_path,omitempty"` // empty means no background music
}

// Story outcome statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPlanned   = "planned" // dry run: job compiled, encoder not started
)

// Degradation reasons recorded on a StoryResult
const (
	DegradedNarrationProbe = "narration_probe_failed"
	DegradedBGMMissing     = "bgm_missing"
	DegradedFontMissing    = "font_missing"
	DegradedClamped        = "reconcile_clamped"
	DegradedThumbnail      = "thumbnail_failed"
	DegradedCaptionPinned  = "caption_pinned"
	DegradedGlyphsMissing  = "glyphs_missing"
)

// StoryResult tracks the outcome of composing one story
type StoryResult struct {
	StoryID       string   `json:"story_id"`
	Status        string   `json:"status"`
	VideoPath     string   `json:"video_path,omitempty"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	DurationSec   float64  `json:"duration_sec"`
	Frames        int      `json:"frames"`
	BGMPath       string   `json:"bgm_path,omitempty"`
	Degraded      []string `json:"degraded,omitempty"`
	Error         string   `json:"error,omitempty"`
	StartedAt     string   `json:"started_at"`
	CompletedAt   string   `json:"completed_at"`
}

// IsDegraded reports whether any degradation was recorded.
func (r StoryResult) IsDegraded() bool { return len(r.Degraded) > 0 }
