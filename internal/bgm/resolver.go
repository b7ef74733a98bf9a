package bgm

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"shorts-pipeline/internal/logging"
)

const trackExt = ".mp3"

// Resolver maps a story category to a background music track
type Resolver struct {
	dir string
	log *zap.Logger
}

// NewResolver creates a Resolver over the tracks in dir
func NewResolver(dir string, log *zap.Logger) *Resolver {
	return &Resolver{
		dir: dir,
		log: logging.Stage(log, "bgm"),
	}
}

// Resolve returns the track for category, or ok=false when there is none.
// An exact <category>.mp3 wins, then a case-insensitive stem match.
// It never fails: every miss is logged and the render goes ahead without music.
func (r *Resolver) Resolve(category string) (path string, ok bool) {
	category = strings.TrimSpace(category)
	if category == "" {
		r.log.Debug("no category, skipping background music")
		return "", false
	}
	if strings.ContainsAny(category, `/\`) {
		r.log.Warn("category is not a plain name", zap.String("category", category))
		return "", false
	}

	exact := filepath.Join(r.dir, category+trackExt)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		r.log.Info("background music resolved", zap.String("category", category), zap.String("track", exact))
		return exact, true
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.Warn("bgm directory unreadable", zap.String("dir", r.dir), zap.Error(err))
		return "", false
	}

	// a Caser holds state, so each call gets its own
	fold := cases.Fold()
	want := fold.String(category)
	var matches []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), trackExt) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if fold.String(stem) == want {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		r.log.Warn("no background music for category", zap.String("category", category))
		return "", false
	}
	sort.Strings(matches)

	track := filepath.Join(r.dir, matches[0])
	r.log.Info("background music resolved", zap.String("category", category), zap.String("track", track))
	return track, true
}
