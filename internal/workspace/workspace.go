package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReleased is returned by Path after the workspace was released.
var ErrReleased = errors.New("workspace: already released")

// Workspace is a temporary directory owned by one story. Everything the
// story writes while composing lives under Dir and is removed by Release.
type Workspace struct {
	dir      string
	storyID  string
	mu       sync.Mutex
	released bool
}

// Acquire creates root/<story>-<random> and returns it. Two stories, or two
// runs of the same story, never share a directory.
func Acquire(root, storyID string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: ensure root: %w", err)
	}
	dir := filepath.Join(root, SafeName(storyID)+"-"+uuid.NewString()[:8])
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create: %w", err)
	}
	return &Workspace{dir: dir, storyID: storyID}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path returns the path of name inside the workspace. name must be a plain
// file name.
func (w *Workspace) Path(name string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return "", ErrReleased
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("workspace: invalid file name %q", name)
	}
	return filepath.Join(w.dir, name), nil
}

// Release removes the workspace and everything in it. A failed removal is
// logged with the directory left behind and returned; calling Release again
// is a no-op.
func (w *Workspace) Release(log *zap.Logger) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true
	if err := os.RemoveAll(w.dir); err != nil {
		if log != nil {
			log.Warn("workspace cleanup failed",
				zap.String("story_id", w.storyID),
				zap.String("dir", w.dir),
				zap.Error(err),
			)
		}
		return fmt.Errorf("workspace: remove %s: %w", w.dir, err)
	}
	return nil
}

// OutputName returns the file name stem for a story's outputs. IDs that are
// already safe keep their name; any other ID gets its SafeName plus a hash of
// the raw ID, so "news/2024" and "news_2024" never share a file.
func OutputName(id string) string {
	safe := SafeName(id)
	if safe == id {
		return safe
	}
	return fmt.Sprintf("%s-%012x", safe, xxhash.Sum64String(id)>>16)
}

// SafeName maps a story ID onto a safe file name component. It is lossy:
// use OutputName for anything that must be unique per ID.
func SafeName(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 48 {
			break
		}
	}
	if b.Len() == 0 {
		return "story"
	}
	return b.String()
}
