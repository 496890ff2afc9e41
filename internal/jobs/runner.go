// Package jobs runs the periodic sync passes with per-job metrics.
package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
	log *zap.SugaredLogger
}

func New(ctx context.Context, log *zap.SugaredLogger) *Runner {
	return &Runner{ctx: ctx, log: log}
}

// Every runs fn on a fixed interval until the runner context ends. The
// first run happens after one interval, not at startup, so a crash-looping
// deploy does not hammer the vendors.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.run(name, fn)
			}
		}
	}()
}

func (r *Runner) run(name string, fn Job) {
	ctx := ctxutil.WithOp(r.ctx, name)
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("job %s panicked: %v", name, rec)
			observability.CaptureCtxErr(ctx, err)
			r.log.Errorw("job panicked", "job", name, "err", err)
			jobErrors.WithLabelValues(name).Inc()
		}
	}()
	start := time.Now()
	if err := fn(ctx); err != nil {
		jobErrors.WithLabelValues(name).Inc()
		r.log.Errorw("job failed", "job", name, "err", err)
	} else {
		jobLastSuccess.WithLabelValues(name).SetToCurrentTime()
	}
	jobRuns.WithLabelValues(name).Inc()
	jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
