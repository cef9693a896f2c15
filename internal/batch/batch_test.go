package batch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shpitdev/stakeholder-profiler/internal/batch"
	"github.com/shpitdev/stakeholder-profiler/internal/llm"
	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
	"github.com/shpitdev/stakeholder-profiler/internal/progress"
	"github.com/shpitdev/stakeholder-profiler/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fnRunner struct {
	f func(ctx context.Context, req profile.Request, sink progress.Sink) (*pipeline.Run, error)
}

func (r fnRunner) Run(ctx context.Context, req profile.Request, sink progress.Sink) (*pipeline.Run, error) {
	return r.f(ctx, req, sink)
}

func coordinator(client llm.Client) *pipeline.Coordinator {
	fast := retry.Policy{Strategy: retry.Fixed, BaseDelay: time.Millisecond, MaxAttempts: 2}
	return pipeline.New(client, pipeline.Options{ResearchRetry: fast, SynthesisRetry: fast, RunTimeout: 5 * time.Second}, nil)
}

func TestProfileAll_PreservesOrderAndReportsRowErrors(t *testing.T) {
	t.Parallel()

	client := llm.ClientFunc(func(_ context.Context, call llm.Call) (llm.Response, error) {
		if call.Kind == llm.CallResearch {
			return llm.TextResponse("nothing found"), nil
		}
		if strings.Contains(call.Prompt, "Broken") {
			return llm.TextResponse("not json"), nil
		}
		name := "Alice"
		if strings.Contains(call.Prompt, "Bob") {
			name = "Bob"
		}
		return llm.TextResponse(`{"name":"` + name + `","confidence":"high"}`), nil
	})

	reqs := []profile.Request{{Name: "Alice"}, {Name: "Broken"}, {Name: "Bob"}}
	out, err := batch.ProfileAll(context.Background(), reqs, coordinator(client), batch.Options{Workers: 3})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, "Alice", out[0].Record.Name)
	assert.Equal(t, profile.ConfidenceHigh, out[0].Record.Confidence)

	var pe *pipeline.Error
	require.True(t, errors.As(out[1].Err, &pe))
	assert.Equal(t, pipeline.KindExtraction, pe.Kind)

	assert.NoError(t, out[2].Err)
	assert.Equal(t, "Bob", out[2].Record.Name)
	for i, o := range out {
		assert.Equal(t, i, o.Index)
	}
}

func TestProfileAll_FailFastCancelsRemaining(t *testing.T) {
	t.Parallel()

	var calls int32
	boom := errors.New("boom")
	r := fnRunner{f: func(ctx context.Context, req profile.Request, _ progress.Sink) (*pipeline.Run, error) {
		atomic.AddInt32(&calls, 1)
		if req.Name == "first" {
			return nil, boom
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	reqs := []profile.Request{{Name: "first"}, {Name: "second"}, {Name: "third"}}
	_, err := batch.ProfileAll(context.Background(), reqs, r, batch.Options{
		Workers:       1,
		FailurePolicy: batch.FailurePolicyFailFast,
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProfileAll_ProgressTaggedByIndex(t *testing.T) {
	t.Parallel()

	client := llm.ClientFunc(func(_ context.Context, call llm.Call) (llm.Response, error) {
		if call.Kind == llm.CallResearch {
			return llm.TextResponse(""), nil
		}
		return llm.TextResponse(`{"name":"x"}`), nil
	})

	var mu sync.Mutex
	seen := map[int]int{}
	_, err := batch.ProfileAll(context.Background(), []profile.Request{{Name: "a"}, {Name: "b"}}, coordinator(client), batch.Options{
		Workers: 2,
		Progress: func(idx int, _ progress.Event) {
			mu.Lock()
			seen[idx]++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, seen[0])
	assert.Positive(t, seen[1])
}

func TestProfileAll_ParentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := fnRunner{f: func(ctx context.Context, _ profile.Request, _ progress.Sink) (*pipeline.Run, error) {
		return nil, ctx.Err()
	}}
	_, err := batch.ProfileAll(ctx, []profile.Request{{Name: "a"}}, r, batch.Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadRequestsCSV(t *testing.T) {
	t.Parallel()

	in := "Name,Company,Role\n  Jane Doe ,Acme,CEO\nJohn Roe,,\n"
	reqs, err := batch.ReadRequestsCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []profile.Request{
		{Name: "Jane Doe", Role: "CEO", Organisation: "Acme"},
		{Name: "John Roe"},
	}, reqs)

	_, err = batch.ReadRequestsCSV(strings.NewReader("email\nx@example.com\n"))
	assert.ErrorContains(t, err, `"name"`)
}

func TestWriteJSONL(t *testing.T) {
	t.Parallel()

	rec := profile.Record{Name: "Jane"}
	rec.Normalize()
	outs := []batch.Output{
		{Index: 0, Request: profile.Request{Name: "Jane"}, Record: rec, Retries: 1},
		{Index: 1, Request: profile.Request{Name: "John"}, Err: errors.New("boom")},
	}
	var buf bytes.Buffer
	require.NoError(t, batch.WriteJSONL(&buf, outs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "Jane", first["name"])
	assert.NotNil(t, first["profile"])
	assert.Nil(t, first["error"])
	assert.Equal(t, "boom", second["error"])
	assert.Nil(t, second["profile"])
}
