package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shorts-pipeline/internal/logging"
	"shorts-pipeline/internal/metrics"
	"shorts-pipeline/internal/types"
	"shorts-pipeline/internal/workspace"
)

// ErrDuplicateStory marks a story whose output name is already taken by an
// earlier story in the same batch.
var ErrDuplicateStory = errors.New("duplicate story output name")

// Composer turns one story into a video.
type Composer interface {
	Compose(ctx context.Context, story types.Story) (types.StoryResult, error)
}

// Options controls a batch run.
type Options struct {
	RunID       string
	Concurrency int // stories composed at once; values below 1 mean 1
	Metrics     *metrics.Recorder
}

// Summary is the outcome of a batch. Results are in input order.
type Summary struct {
	RunID       string              `json:"run_id"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"succeeded"`
	Planned     int                 `json:"planned,omitempty"`
	Failed      int                 `json:"failed"`
	Degraded    int                 `json:"degraded"`
	Results     []types.StoryResult `json:"results"`
	StartedAt   string              `json:"started_at"`
	CompletedAt string              `json:"completed_at"`
}

// OK reports whether no story failed.
func (s Summary) OK() bool { return s.Failed == 0 }

// Run composes every story. A failing story is recorded and the batch moves
// on; once ctx is cancelled, stories not yet started are recorded as failed
// with the context error. A story whose output name matches an earlier one
// (compared case-insensitively) fails with ErrDuplicateStory and is never
// composed.
func Run(ctx context.Context, c Composer, stories []types.Story, opts Options, log *zap.Logger) Summary {
	log = logging.Stage(log, "batch").With(zap.String("run_id", opts.RunID))
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	sum := Summary{
		RunID:     opts.RunID,
		Total:     len(stories),
		Results:   make([]types.StoryResult, len(stories)),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	log.Info("batch starting", zap.Int("stories", len(stories)), zap.Int("concurrency", limit))

	// Compose never fails the group: errors live on the results.
	var g errgroup.Group
	g.SetLimit(limit)
	owners := make(map[string]string, len(stories))
	for i, story := range stories {
		// blank IDs are left to the composer, which rejects them
		key := strings.ToLower(workspace.OutputName(story.ID))
		if first, ok := owners[key]; ok && strings.TrimSpace(story.ID) != "" {
			log.Error("story skipped, output name taken",
				zap.String("story_id", story.ID),
				zap.String("taken_by", first),
			)
			sum.Results[i] = rejected(story, fmt.Errorf("%w: %q collides with %q", ErrDuplicateStory, story.ID, first))
			continue
		}
		owners[key] = story.ID
		if err := ctx.Err(); err != nil {
			sum.Results[i] = skipped(story, err)
			continue
		}
		i, story := i, story
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				sum.Results[i] = skipped(story, err)
				return nil
			}
			res, err := c.Compose(ctx, story)
			if err != nil && res.Status != types.StatusFailed {
				res.StoryID = story.ID
				res.Status = types.StatusFailed
				res.Error = err.Error()
			}
			sum.Results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range sum.Results {
		switch res.Status {
		case types.StatusSucceeded:
			sum.Succeeded++
		case types.StatusPlanned:
			sum.Planned++
		default:
			sum.Failed++
		}
		if res.IsDegraded() {
			sum.Degraded++
		}
		if opts.Metrics != nil {
			opts.Metrics.StoryFinished(res.Status)
		}
	}
	sum.CompletedAt = time.Now().UTC().Format(time.RFC3339)

	log.Info("batch complete",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("planned", sum.Planned),
		zap.Int("failed", sum.Failed),
		zap.Int("degraded", sum.Degraded),
	)
	return sum
}

func skipped(story types.Story, err error) types.StoryResult {
	return rejected(story, fmt.Errorf("not started: %w", err))
}

func rejected(story types.Story, err error) types.StoryResult {
	now := time.Now().UTC().Format(time.RFC3339)
	return types.StoryResult{
		StoryID:     story.ID,
		Status:      types.StatusFailed,
		Error:       err.Error(),
		StartedAt:   now,
		CompletedAt: now,
	}
}

// SaveSummary writes the summary as indented JSON to dir/run_<id>.json and
// returns the path.
func SaveSummary(sum Summary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create summary dir: %w", err)
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(dir, "run_"+sum.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// LoadStories reads a JSON array of stories.
func LoadStories(path string) ([]types.Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stories: %w", err)
	}
	var stories []types.Story
	if err := json.Unmarshal(data, &stories); err != nil {
		return nil, fmt.Errorf("parse stories %s: %w", path, err)
	}
	return stories, nil
}
