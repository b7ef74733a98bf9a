package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// Recorder holds the render counters for one process. Every Recorder has its
// own registry, so tests and parallel runs do not share state.
type Recorder struct {
	registry *prometheus.Registry

	stories    *prometheus.CounterVec
	degraded   *prometheus.CounterVec
	reconciled *prometheus.CounterVec
	renderTime prometheus.Histogram
	frames     prometheus.Counter
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		stories: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shorts_stories_total",
			Help: "Stories processed, partitioned by final status.",
		}, []string{"status"}),
		degraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shorts_degradations_total",
			Help: "Non-fatal degradations, partitioned by reason.",
		}, []string{"reason"}),
		reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shorts_reconcile_total",
			Help: "Duration reconciliations, partitioned by outcome.",
		}, []string{"outcome"}),
		renderTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shorts_render_seconds",
			Help:    "Wall time of one encoder invocation.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "shorts_frames_rendered_total",
			Help: "Video frames produced by successful renders.",
		}),
	}
}

// Registry exposes the underlying registry for scraping or tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// StoryFinished counts one story outcome under its status label.
func (r *Recorder) StoryFinished(status string) { r.stories.WithLabelValues(status).Inc() }

// Degraded counts one degradation reason. Callers record a reason at most
// once per story.
func (r *Recorder) Degraded(reason string) { r.degraded.WithLabelValues(reason).Inc() }

// Reconciled counts a reconciliation outcome by its timeline.Outcome name.
func (r *Recorder) Reconciled(outcome string) { r.reconciled.WithLabelValues(outcome).Inc() }

// Rendered observes the encode time of a successful render and adds its
// frames to the frame counter.
func (r *Recorder) Rendered(seconds float64, frames int) {
	r.renderTime.Observe(seconds)
	r.frames.Add(float64(frames))
}

// Push sends the current values to a Pushgateway. An empty url is a no-op.
func (r *Recorder) Push(url, job string, log *zap.Logger) error {
	if url == "" {
		return nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instance := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	if err := push.New(url, job).Gatherer(r.registry).Grouping("instance", instance).Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	if log != nil {
		log.Info("metrics pushed", zap.String("url", url), zap.String("job", job), zap.String("instance", instance))
	}
	return nil
}
