package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/shpitdev/stakeholder-profiler/internal/extract"
	"github.com/shpitdev/stakeholder-profiler/internal/llm"
	"github.com/shpitdev/stakeholder-profiler/internal/metrics"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/redact"
	"github.com/shpitdev/stakeholder-profiler/internal/retry"
	"go.uber.org/zap"
)

const (
	stageResearch  = "research"
	stageSynthesis = "synthesis"
)

// research never fails the run: any error degrades to an empty result.
func (c *Coordinator) research(ctx context.Context, run *Run, logger *zap.Logger) profile.ResearchResult {
	empty := profile.ResearchResult{Sources: []string{}}
	call := llm.Call{
		Kind:      llm.CallResearch,
		System:    researchSystemPrompt,
		Prompt:    buildResearchPrompt(run.Request),
		UseSearch: true,
		MaxTokens: c.opts.ResearchMaxTokens,
	}

	start := time.Now()
	resp, err := c.call(ctx, run, stageResearch, c.opts.ResearchRetry, call, logger)
	if err != nil {
		metrics.StageDuration.WithLabelValues(stageResearch, "error").Observe(time.Since(start).Seconds())
		metrics.ResearchDegraded.Inc()
		logger.Warn("research unavailable; continuing without it",
			zap.String("error", redact.Secrets(err.Error())),
			zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		)
		run.note(stageResearch, "Research unavailable, building profile from background knowledge")
		return empty
	}
	metrics.StageDuration.WithLabelValues(stageResearch, "ok").Observe(time.Since(start).Seconds())

	full := resp.Text()
	if strings.TrimSpace(full) == "" {
		run.note(stageResearch, "Research returned no text, building profile from background knowledge")
		metrics.ResearchDegraded.Inc()
		return empty
	}

	sources := extract.ScanURLs(full, extract.MaxSources)
	citations := profile.DedupePreserveOrder(resp.Citations)

	text := truncateRunes(full, c.opts.ResearchMaxChars)
	logger.Info("research complete",
		zap.Int("chars", len(full)),
		zap.Int("retained_chars", len(text)),
		zap.Int("sources", len(sources)),
		zap.Int("citations", len(citations)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return profile.ResearchResult{Text: text, Sources: sources, Citations: citations}
}

// synthesize fails the run on any error that survives the retry policy.
func (c *Coordinator) synthesize(ctx context.Context, run *Run, research profile.ResearchResult, logger *zap.Logger) (string, error) {
	call := llm.Call{
		Kind:       llm.CallSynthesis,
		System:     synthesisSystemPrompt,
		Prompt:     buildSynthesisPrompt(run.Request, research),
		JSONOutput: true,
		MaxTokens:  c.opts.SynthesisMaxTokens,
	}

	start := time.Now()
	resp, err := c.call(ctx, run, stageSynthesis, c.opts.SynthesisRetry, call, logger)
	if err != nil {
		metrics.StageDuration.WithLabelValues(stageSynthesis, "error").Observe(time.Since(start).Seconds())
		return "", err
	}
	metrics.StageDuration.WithLabelValues(stageSynthesis, "ok").Observe(time.Since(start).Seconds())

	raw := resp.Text()
	logger.Info("synthesis complete",
		zap.String("model", resp.Model),
		zap.Int("chars", len(raw)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return raw, nil
}

// call wraps one external call in the stage's retry policy and reports every
// retry on the run.
func (c *Coordinator) call(ctx context.Context, run *Run, stage string, policy retry.Policy, call llm.Call, logger *zap.Logger) (llm.Response, error) {
	return retry.Do(ctx, policy, func(ctx context.Context) (llm.Response, error) {
		return c.generate(ctx, call)
	}, retry.WithNotify(func(s retry.State) {
		kind := llm.Classify(s.Err)
		metrics.StageRetries.WithLabelValues(stage, string(kind)).Inc()
		logger.Warn("external call retry",
			zap.String("stage", stage),
			zap.String("kind", string(kind)),
			zap.Int("attempt", s.Attempt),
			zap.Int("max_attempts", s.MaxAttempts),
			zap.Duration("delay", s.NextDelay),
		)
		run.retryNotice(stage, s)
	}))
}

type generateResult struct {
	resp llm.Response
	err  error
}

// generate bounds a client call by ctx even if the client ignores cancellation.
func (c *Coordinator) generate(ctx context.Context, call llm.Call) (llm.Response, error) {
	done := make(chan generateResult, 1)
	go func() {
		resp, err := c.client.Generate(ctx, call)
		done <- generateResult{resp: resp, err: err}
	}()
	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return llm.Response{}, ctx.Err()
	}
}
