// Package batch profiles many stakeholders concurrently with a bounded worker
// pool on top of the pipeline coordinator.
package batch

import (
	"context"
	"sync"

	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"golang.org/x/time/rate"
)

// Runner executes a single profile pipeline.
type Runner interface {
	Run(ctx context.Context, req profile.Request, sink progress.Sink) (*pipeline.Run, error)
}

type FailurePolicy int

const (
	FailurePolicyPartialOutput FailurePolicy = iota
	FailurePolicyFailFast
)

type Options struct {
	Workers int

	// RateLimitRPS limits how often new runs start across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy

	// Progress, when set, receives every event of every run tagged with its input index.
	Progress func(idx int, e progress.Event)
}

type Output struct {
	Index   int
	Request profile.Request
	Record  profile.Record
	Retries int
	Err     error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// ProfileAll runs every request and returns outputs in input order. With
// FailurePolicyPartialOutput, per-row failures are reported on the Output and
// the call itself only fails when ctx ends. With FailurePolicyFailFast, the
// first failure cancels outstanding work and is returned.
func ProfileAll(ctx context.Context, reqs []profile.Request, runner Runner, opts Options) ([]Output, error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Output, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			if runCtx.Err() != nil {
				return
			}
			res := profileOne(runCtx, idx, reqs[idx], runner, limiter, opts)
			out[idx] = res
			if res.Err != nil && opts.FailurePolicy == FailurePolicyFailFast {
				fail(res.Err)
				return
			}
		}
	}

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go worker()
	}

feed:
	for i := range reqs {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func profileOne(ctx context.Context, idx int, req profile.Request, runner Runner, limiter *rate.Limiter, opts Options) Output {
	o := Output{Index: idx, Request: req.Normalized()}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			o.Err = err
			return o
		}
	}

	sink := progress.Discard
	if opts.Progress != nil {
		sink = progress.SinkFunc(func(e progress.Event) { opts.Progress(idx, e) })
	}

	run, err := runner.Run(ctx, req, sink)
	if run != nil {
		o.Retries = run.RetryCount()
		if run.Record != nil {
			o.Record = *run.Record
		}
	}
	o.Err = err
	return o
}
