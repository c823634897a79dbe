package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/adapters/texttemplate"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/catalog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/registry"
)

// recorder captures lifecycle events in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) OnEvent(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newEngine(reg *registry.Registry, observers ...domain.Observer) *runtime.Engine {
	var eng *runtime.Engine
	run := func(ctx context.Context, g *domain.Graph, rctx domain.Context) (domain.Context, error) {
		return eng.RunShared(ctx, g, rctx)
	}
	cat := catalog.Default(reg, nil, texttemplate.New(), run)
	eng = runtime.NewEngine(cat,
		runtime.WithDispatcher(observability.NewDispatcher(observers...)),
	)
	return eng
}

func fnGraph(t *testing.T, build func(b *dsl.Builder) *dsl.Builder) *domain.Graph {
	t.Helper()
	b := dsl.New("test")
	g, err := build(b).Build()
	require.NoError(t, err)
	return g
}

func TestRun_SequentialVisibility(t *testing.T) {
	reg := registry.New()
	reg.Register("produce", func(_ context.Context, _ map[string]any) (any, error) {
		return "hello", nil
	})
	reg.Register("consume", func(_ context.Context, inputs map[string]any) (any, error) {
		return fmt.Sprintf("%v world", inputs["greeting"]), nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("produce").Function("produce").Output("greeting").Retries(0).Delay(0)
		b.Node("consume").Function("consume").
			Input("greeting", domain.FromKey("greeting")).
			Output("result").Retries(0).Delay(0)
		return b.Start("produce").Then("consume")
	})

	final, err := newEngine(reg).Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", final["greeting"])
	assert.Equal(t, "hello world", final["result"])
}

func TestRun_SeedNotMutated(t *testing.T) {
	reg := registry.New()
	reg.Register("write", func(_ context.Context, _ map[string]any) (any, error) {
		return "v", nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("write").Function("write").Output("k").Retries(0).Delay(0)
		return b.Start("write")
	})

	seed := domain.Context{"seeded": true}
	final, err := newEngine(reg).Run(context.Background(), g, seed)
	require.NoError(t, err)

	assert.Equal(t, "v", final["k"])
	assert.NotContains(t, seed, "k", "seed context must stay untouched")
}

func TestRun_RetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	reg := registry.New()
	reg.Register("flaky", func(_ context.Context, _ map[string]any) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("flaky").Function("flaky").Retries(2).Delay(0)
		return b.Start("flaky")
	})

	rec := &recorder{}
	_, err := newEngine(reg, rec).Run(context.Background(), g, nil)

	// retries=2 means exactly 3 invocations, no more.
	assert.Equal(t, int32(3), calls.Load())

	var execErr *domain.NodeExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "flaky", execErr.NodeID)
	assert.Equal(t, 3, execErr.Attempts)
	assert.ErrorContains(t, execErr.Cause, "boom")

	failed := rec.ofType(domain.EventNodeFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Attempts)
}

func TestRun_RetrySucceedsMidway(t *testing.T) {
	var calls atomic.Int32
	reg := registry.New()
	reg.Register("eventually", func(_ context.Context, _ map[string]any) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("not yet")
		}
		return "ok", nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("eventually").Function("eventually").Output("out").Retries(5).Delay(0)
		return b.Start("eventually")
	})

	rec := &recorder{}
	final, err := newEngine(reg, rec).Run(context.Background(), g, nil)
	require.NoError(t, err)

	assert.Equal(t, "ok", final["out"])
	assert.Equal(t, int32(3), calls.Load())

	completed := rec.ofType(domain.EventNodeCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 3, completed[0].Attempts)
}

func TestRun_TimeoutAbortsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	reg := registry.New()
	reg.Register("slow", func(ctx context.Context, _ map[string]any) (any, error) {
		calls.Add(1)
		select {
		case <-time.After(500 * time.Millisecond):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("slow").Function("slow").Retries(5).Delay(0).Timeout(20 * time.Millisecond)
		return b.Start("slow")
	})

	_, err := newEngine(reg).Run(context.Background(), g, nil)

	var toErr *domain.NodeTimeoutError
	require.ErrorAs(t, err, &toErr)
	assert.Equal(t, "slow", toErr.NodeID)
	assert.Equal(t, 20*time.Millisecond, toErr.Timeout)

	// A timeout consumes the node, not its retry budget.
	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_Cancellation(t *testing.T) {
	started := make(chan struct{})
	reg := registry.New()
	reg.Register("wait", func(ctx context.Context, _ map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("wait").Function("wait").Retries(3).Delay(0)
		return b.Start("wait")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := newEngine(reg).Run(ctx, g, nil)
	assert.ErrorIs(t, err, domain.ErrRunCancelled)
}

func TestRun_CancelledDelayAborts(t *testing.T) {
	var calls atomic.Int32
	reg := registry.New()
	reg.Register("flaky", func(_ context.Context, _ map[string]any) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("flaky").Function("flaky").Retries(5).Delay(time.Hour)
		return b.Start("flaky")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newEngine(reg).Run(ctx, g, nil)

	assert.ErrorIs(t, err, domain.ErrRunCancelled)
	assert.Equal(t, int32(1), calls.Load())
	assert.Less(t, time.Since(start), time.Second, "delay must abort on cancellation")
}

func TestRun_ParallelDurationIsMaxNotSum(t *testing.T) {
	const d = 60 * time.Millisecond
	reg := registry.New()
	sleeper := func(_ context.Context, _ map[string]any) (any, error) {
		time.Sleep(d)
		return "done", nil
	}
	reg.Register("sleep", sleeper)

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("split").Function("sleep").Retries(0).Delay(0)
		b.Node("p1").Function("sleep").Retries(0).Delay(0).Parallel()
		b.Node("p2").Function("sleep").Retries(0).Delay(0).Parallel()
		b.Node("p3").Function("sleep").Retries(0).Delay(0).Parallel()
		b.Node("join").Function("sleep").Retries(0).Delay(0)
		return b.Start("split").Parallel("p1", "p2", "p3").Then("join")
	})

	start := time.Now()
	_, err := newEngine(reg).Run(context.Background(), g, nil)
	require.NoError(t, err)
	elapsed := time.Since(start)

	// split + group + join: the group costs ~max(d), not 3*d.
	assert.GreaterOrEqual(t, elapsed, 3*d)
	assert.Less(t, elapsed, 5*d, "parallel group appears to have run sequentially")
}

func TestRun_ParallelLastWriteWins(t *testing.T) {
	reg := registry.New()
	reg.Register("first", func(_ context.Context, _ map[string]any) (any, error) {
		return "first", nil
	})
	reg.Register("second", func(_ context.Context, _ map[string]any) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "second", nil
	})

	// Both siblings write the same key. Merge order follows declaration
	// order in the fan-out, so the later sibling wins deterministically.
	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("split").Function("first").Retries(0).Delay(0)
		b.Node("w1").Function("first").Output("winner").Retries(0).Delay(0)
		b.Node("w2").Function("second").Output("winner").Retries(0).Delay(0)
		return b.Start("split").Parallel("w1", "w2")
	})

	for i := 0; i < 5; i++ {
		final, err := newEngine(reg).Run(context.Background(), g, nil)
		require.NoError(t, err)
		assert.Equal(t, "second", final["winner"])
	}
}

func TestRun_ParallelSiblingFailureJoinsFirst(t *testing.T) {
	var slowDone atomic.Bool
	reg := registry.New()
	reg.Register("fail_fast", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("sibling down")
	})
	reg.Register("slow_ok", func(_ context.Context, _ map[string]any) (any, error) {
		time.Sleep(40 * time.Millisecond)
		slowDone.Store(true)
		return "finished", nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("split").Function("slow_ok").Retries(0).Delay(0)
		b.Node("bad").Function("fail_fast").Retries(0).Delay(0)
		b.Node("good").Function("slow_ok").Output("good_out").Retries(0).Delay(0)
		return b.Start("split").Parallel("bad", "good")
	})

	_, err := newEngine(reg).Run(context.Background(), g, nil)

	var execErr *domain.NodeExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "bad", execErr.NodeID)

	// The failing join still waited for the in-flight sibling.
	assert.True(t, slowDone.Load(), "join must wait for in-flight siblings")
}

func TestRun_ConditionalFirstMatchWins(t *testing.T) {
	reg := registry.New()
	reg.Register("mark", func(_ context.Context, inputs map[string]any) (any, error) {
		return inputs["tag"], nil
	})

	// Both guards hold for n=5; only the first declared transition fires.
	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("probe").Function("mark").Input("tag", domain.Literal("probe")).Retries(0).Delay(0)
		b.Node("big").Function("mark").Input("tag", domain.Literal("big")).Output("path").Retries(0).Delay(0)
		b.Node("positive").Function("mark").Input("tag", domain.Literal("positive")).Output("path").Retries(0).Delay(0)
		return b.Start("probe").
			ThenIf("big", "ctx.n > 3")
	})
	require.NoError(t, g.AddTransition(domain.Transition{
		From: "probe", To: []string{"positive"}, Condition: "ctx.n > 0",
	}))

	final, err := newEngine(reg).Run(context.Background(), g, domain.Context{"n": 5})
	require.NoError(t, err)
	assert.Equal(t, "big", final["path"])
}

func TestRun_NoMatchingTransitionEndsRun(t *testing.T) {
	reg := registry.New()
	reg.Register("noop", func(_ context.Context, _ map[string]any) (any, error) {
		return "done", nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("a").Function("noop").Output("a_out").Retries(0).Delay(0)
		b.Node("b").Function("noop").Output("b_out").Retries(0).Delay(0)
		return b.Start("a").ThenIf("b", "ctx.never_set")
	})

	final, err := newEngine(reg).Run(context.Background(), g, domain.Context{"never_set": false})
	require.NoError(t, err)
	assert.Equal(t, "done", final["a_out"])
	assert.NotContains(t, final, "b_out")
}

func TestRun_GuardedLoop(t *testing.T) {
	reg := registry.New()
	reg.Register("bump", func(_ context.Context, inputs map[string]any) (any, error) {
		n, _ := inputs["n"].(int)
		return n + 1, nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("bump").Function("bump").
			Input("n", domain.FromKeyDefault("count", 0)).
			Output("count").Retries(0).Delay(0)
		return b.Start("bump")
	})
	require.NoError(t, g.AddTransition(domain.Transition{
		From: "bump", To: []string{"bump"}, Condition: "ctx.count < 3",
	}))

	final, err := newEngine(reg).Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, final["count"])
}

func TestRun_SubWorkflowShared(t *testing.T) {
	reg := registry.New()
	reg.Register("write_inner", func(_ context.Context, _ map[string]any) (any, error) {
		return "from inner", nil
	})

	innerB := dsl.New("inner")
	innerB.Node("w").Function("write_inner").Output("inner_key").Retries(0).Delay(0)
	inner, err := innerB.Start("w").Build()
	require.NoError(t, err)

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("embedded").SubWorkflow(inner, nil).Retries(0).Delay(0)
		return b.Start("embedded")
	})

	final, err := newEngine(reg).Run(context.Background(), g, nil)
	require.NoError(t, err)

	// Shared mode: inner writes land directly in the outer context.
	assert.Equal(t, "from inner", final["inner_key"])
}

func TestRun_SubWorkflowMapped(t *testing.T) {
	reg := registry.New()
	reg.Register("echo", func(_ context.Context, inputs map[string]any) (any, error) {
		return inputs["v"], nil
	})

	innerB := dsl.New("inner")
	innerB.Node("echo").Function("echo").
		Input("v", domain.FromKey("seed")).
		Output("echoed").Retries(0).Delay(0)
	inner, err := innerB.Start("echo").Build()
	require.NoError(t, err)

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("embedded").
			SubWorkflow(inner, map[string]string{"seed": "outer_value"}).
			Output("inner_result").Retries(0).Delay(0)
		return b.Start("embedded")
	})

	final, err := newEngine(reg).Run(context.Background(), g, domain.Context{
		"outer_value": "mapped in",
		"private":     "stays outside",
	})
	require.NoError(t, err)

	// Mapped mode: the inner final context is the node's result.
	result, ok := final["inner_result"].(map[string]any)
	require.True(t, ok, "inner_result should be the inner final context, got %T", final["inner_result"])
	assert.Equal(t, "mapped in", result["echoed"])
	assert.Equal(t, "mapped in", result["seed"])
	assert.NotContains(t, result, "private")
}

func TestRun_EventSequence(t *testing.T) {
	reg := registry.New()
	reg.Register("noop", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("a").Function("noop").Retries(0).Delay(0)
		b.Node("b").Function("noop").Retries(0).Delay(0)
		return b.Start("a").Then("b")
	})

	rec := &recorder{}
	_, err := newEngine(reg, rec).Run(context.Background(), g, nil)
	require.NoError(t, err)

	var types []domain.EventType
	for _, ev := range rec.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventWorkflowStarted,
		domain.EventNodeStarted,
		domain.EventNodeCompleted,
		domain.EventNodeStarted,
		domain.EventNodeCompleted,
		domain.EventWorkflowCompleted,
	}, types)

	// All events of one run share its ID.
	runID := rec.events[0].RunID
	require.NotEmpty(t, runID)
	for _, ev := range rec.events {
		assert.Equal(t, runID, ev.RunID)
	}
}

func TestRun_ExternallyAssignedRunID(t *testing.T) {
	reg := registry.New()
	reg.Register("noop", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	})

	g := fnGraph(t, func(b *dsl.Builder) *dsl.Builder {
		b.Node("a").Function("noop").Retries(0).Delay(0)
		return b.Start("a")
	})

	rec := &recorder{}
	ctx := runtime.WithRunID(context.Background(), "run-fixed")
	_, err := newEngine(reg, rec).Run(ctx, g, nil)
	require.NoError(t, err)

	for _, ev := range rec.events {
		assert.Equal(t, "run-fixed", ev.RunID)
	}
}
