// Package dispatch executes a batch of independent jobs against a bounded
// worker pool.
//
// The contract: one output slot per input job, in input order, with the
// job's identity echoed back by the result. A worker error, timeout, panic,
// or a result whose identity does not match its job nils out that slot and
// the batch continues. Workers are assumed stateless and idempotent; no
// inter-job ordering or priority is imposed.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/refit/pkg/adapter"
)

// Job is one unit of work for a single artifact within a stage.
type Job interface {
	Key() string
}

// Result is a stage output correlated back to its job by key.
type Result interface {
	Key() string
}

// Worker transforms a job into a result. It must honor ctx cancellation and
// must have no side effects beyond progress emission.
type Worker[J Job, R Result] func(ctx context.Context, job J) (R, error)

// Options tunes a batch run.
type Options struct {
	// Concurrency is the ceiling on jobs in flight. Values < 1 mean 1.
	Concurrency int
	// Timeout bounds each job individually. Zero means no per-job deadline.
	Timeout time.Duration
	// Logf receives drop notices for failed slots.
	Logf func(format string, args ...any)
}

// Run executes all jobs with at most opts.Concurrency in flight and returns
// a slice with the same cardinality as jobs. Failed slots hold the zero
// value of R; the caller filters them before the next stage.
func Run[J Job, R Result](ctx context.Context, jobs []J, worker Worker[J, R], opts Options) []R {
	results := make([]R, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	// The group context is deliberately not used for job contexts: one bad
	// job never aborts the batch, so goroutines always return nil.
	var g errgroup.Group
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := invoke(ctx, job, worker, opts.Timeout)
			if err != nil {
				if adapter.IsTransient(err) {
					opts.logf("dispatch: dropping job %s (transient, may clear on a later run): %v", job.Key(), err)
				} else {
					opts.logf("dispatch: dropping job %s: %v", job.Key(), err)
				}
				return nil
			}
			if res.Key() != job.Key() {
				opts.logf("dispatch: dropping job %s: result identity %q does not match", job.Key(), res.Key())
				return nil
			}
			results[i] = res
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Survivors filters the zero-valued slots out of a Run result set.
func Survivors[R Result](results []R) []R {
	out := make([]R, 0, len(results))
	var zero R
	for _, r := range results {
		if any(r) == any(zero) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func invoke[J Job, R Result](ctx context.Context, job J, worker Worker[J, R], timeout time.Duration) (res R, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			var zero R
			res = zero
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	res, err = worker(ctx, job)
	if err != nil {
		var zero R
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		var zero R
		return zero, err
	}
	var zero R
	if any(res) == any(zero) {
		return zero, fmt.Errorf("worker returned no result")
	}
	return res, nil
}

func (o Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}
