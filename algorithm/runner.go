package algorithm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/godeepar/umep/observability"
)

// Runner validates parameters, runs an algorithm and records the outcome.
type Runner struct {
	Log     *zap.SugaredLogger
	Metrics *observability.Metrics
	Clock   clockwork.Clock
}

// NewRunner returns a runner on the real clock.
func NewRunner(log *zap.SugaredLogger, m *observability.Metrics) *Runner {
	return &Runner{Log: log, Metrics: m, Clock: clockwork.NewRealClock()}
}

// Run executes a with the raw parameter values. Every run gets its own id
// in the log.
func (r *Runner) Run(ctx context.Context, a Algorithm, raw map[string]string) (Outputs, error) {
	log := r.Log.With("run", uuid.NewString(), "algorithm", a.Name())

	v := NewValues(a.Params(), raw)
	if err := v.Validate(); err != nil {
		r.record(a, "error", 0)
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}

	log.Infow("run started", "params", raw)
	start := r.Clock.Now()
	out, err := a.Run(ctx, v, LogFeedback{Log: log})
	elapsed := r.Clock.Since(start)
	if err != nil {
		r.record(a, "error", elapsed.Seconds())
		log.Errorw("run failed", "error", err, "elapsed", elapsed)
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}
	r.record(a, "success", elapsed.Seconds())
	log.Infow("run finished", "outputs", out, "elapsed", elapsed)
	return out, nil
}

func (r *Runner) record(a Algorithm, outcome string, seconds float64) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.Runs.WithLabelValues(a.Name(), outcome).Inc()
	if outcome == "success" {
		r.Metrics.RunDuration.WithLabelValues(a.Name()).Observe(seconds)
	}
}
