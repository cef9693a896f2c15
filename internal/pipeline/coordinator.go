// Package pipeline sequences the research and synthesis calls and turns the
// result into a profile record.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/shpitdev/stakeholder-profiler/internal/extract"
	"github.com/shpitdev/stakeholder-profiler/internal/llm"
	"github.com/shpitdev/stakeholder-profiler/internal/metrics"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"github.com/shpitdev/stakeholder-profiler/internal/retry"
	"go.uber.org/zap"
)

type Options struct {
	ResearchRetry  retry.Policy
	SynthesisRetry retry.Policy

	// RunTimeout bounds research, synthesis and extraction together.
	RunTimeout time.Duration

	// ResearchMaxChars caps research text passed to synthesis. <=0 keeps all of it.
	ResearchMaxChars int

	ResearchMaxTokens  int32
	SynthesisMaxTokens int32
}

// DefaultOptions mirrors the service defaults: five attempts starting at 3s for
// both stages and a five minute run budget.
func DefaultOptions() Options {
	return Options{
		ResearchRetry:      retry.Policy{Strategy: retry.Exponential, BaseDelay: 3 * time.Second, MaxAttempts: 5},
		SynthesisRetry:     retry.Policy{Strategy: retry.Exponential, BaseDelay: 3 * time.Second, MaxAttempts: 5},
		RunTimeout:         5 * time.Minute,
		ResearchMaxTokens:  4000,
		SynthesisMaxTokens: 8000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ResearchRetry.MaxAttempts <= 0 {
		o.ResearchRetry = d.ResearchRetry
	}
	if o.SynthesisRetry.MaxAttempts <= 0 {
		o.SynthesisRetry = d.SynthesisRetry
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = d.RunTimeout
	}
	return o
}

// Coordinator runs profile pipelines. It holds only read-only configuration and
// is safe for concurrent use; each Run is isolated.
type Coordinator struct {
	client llm.Client
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func New(client llm.Client, opts Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one pipeline. The returned Run is always non-nil; the error is a
// *Error when the run did not complete.
func (c *Coordinator) Run(ctx context.Context, req profile.Request, sink progress.Sink) (*Run, error) {
	req = req.Normalized()
	run := newRun(req, sink, c.now)
	logger := c.logger.With(zap.String("run_id", run.ID), zap.String("subject", req.Name))

	if err := req.Validate(); err != nil {
		run.Err = invalidRequest(err)
		run.State = StateFailed
		run.FinishedAt = c.now()
		logger.Info("request rejected", zap.Error(err))
		return run, run.Err
	}

	metrics.RunsStarted.Inc()
	runCtx, cancel := context.WithTimeout(ctx, c.opts.RunTimeout)
	defer cancel()

	logger.Info("run start",
		zap.Duration("timeout", c.opts.RunTimeout),
		zap.Int("research_max_attempts", c.opts.ResearchRetry.MaxAttempts),
		zap.Int("synthesis_max_attempts", c.opts.SynthesisRetry.MaxAttempts),
	)
	run.enter(StateAccepted, "Request accepted for "+req.Name)

	run.enter(StateResearching, "Researching public information about "+req.Name+"...")
	research := c.research(runCtx, run, logger)
	run.Research = &research

	run.enter(StateSynthesizing, "Synthesizing profile...")
	raw, err := c.synthesize(runCtx, run, research, logger)
	if err != nil {
		return c.finish(run, stageError(stageSynthesis, c.opts.RunTimeout, err), logger)
	}
	run.Raw = raw

	run.enter(StateExtracting, "Parsing structured profile...")
	rec, err := extract.Extract(raw, research.Sources)
	if err != nil {
		return c.finish(run, extractionError(err), logger)
	}
	if err := runCtx.Err(); err != nil {
		return c.finish(run, stageError(string(StateExtracting), c.opts.RunTimeout, err), logger)
	}

	run.complete(rec)
	c.observe(run, logger)
	return run, nil
}

func (c *Coordinator) finish(run *Run, err *Error, logger *zap.Logger) (*Run, error) {
	run.fail(err)
	c.observe(run, logger)
	return run, err
}

func (c *Coordinator) observe(run *Run, logger *zap.Logger) {
	outcome := string(StateCompleted)
	if run.Err != nil {
		outcome = string(run.Err.Kind)
	}
	elapsed := run.FinishedAt.Sub(run.StartedAt)
	metrics.RunsCompleted.WithLabelValues(outcome).Inc()
	metrics.RunDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.Int("retries", run.RetryCount()),
		zap.Duration("duration", elapsed.Round(time.Millisecond)),
	}
	if run.Err == nil {
		logger.Info("run complete", append(fields, zap.Int("sources", len(run.Record.Sources)))...)
		return
	}
	fields = append(fields, zap.String("error", run.Err.Message))
	if run.Err.Raw != "" {
		fields = append(fields, zap.String("raw_excerpt", run.Err.Raw))
	}
	if errors.Is(run.Err, context.Canceled) {
		logger.Info("run canceled", fields...)
		return
	}
	logger.Error("run failed", fields...)
}
