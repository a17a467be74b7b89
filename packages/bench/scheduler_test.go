package bench

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recurlhq/recurl/packages/reqfile"
)

func target(name string, weight int) *Target {
	return &Target{
		Request: reqfile.Request{Name: name, URL: "https://example.com/" + name},
		Weight:  weight,
	}
}

func TestSchedulerPickSingle(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.Add(target("only", 1))

	for i := 0; i < 10; i++ {
		picked := s.Pick()
		require.NotNil(t, picked)
		assert.Equal(t, "only", picked.Request.Name)
	}
}

func TestSchedulerPickEmpty(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	assert.Nil(t, s.Pick())
}

func TestSchedulerPickWeighted(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.Add(target("heavy", 90))
	s.Add(target("light", 10))

	counts := make(map[string]int)
	iterations := 10000
	for i := 0; i < iterations; i++ {
		picked := s.Pick()
		require.NotNil(t, picked)
		counts[picked.Request.Name]++
	}

	assert.InDelta(t, 0.9, float64(counts["heavy"])/float64(iterations), 0.05)
	assert.InDelta(t, 0.1, float64(counts["light"])/float64(iterations), 0.05)
}

func TestSchedulerAddDefaultsWeight(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.Add(target("a", 0))
	s.Add(target("b", -3))

	targets := s.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, 1, targets[0].Weight)
	assert.Equal(t, 1, targets[1].Weight)
}

func TestSchedulerWaitRateMode(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 100, MaxVUs: 10})
	ctx := context.Background()

	// The first token is free; the second waits for the limiter.
	start := time.Now()
	require.NoError(t, s.Wait(ctx))
	assert.Less(t, time.Since(start), 5*time.Millisecond)

	start = time.Now()
	require.NoError(t, s.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSchedulerWaitCancelled(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 1, MaxVUs: 10})

	ctx, cancel := context.WithCancel(context.Background())
	_ = s.Wait(ctx)
	cancel()

	assert.Error(t, s.Wait(ctx))
}

func TestSchedulerWaitVUMode(t *testing.T) {
	s := NewScheduler(&Config{Mode: VUMode, VUs: 5, MaxVUs: 10})

	start := time.Now()
	require.NoError(t, s.Wait(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}

func TestSchedulerAcquireRelease(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 10, MaxVUs: 2})
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx))
	require.NoError(t, s.Acquire(ctx))

	// Both slots taken; the third acquire must block until the timeout.
	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Acquire(ctx2))

	s.Release()

	ctx3, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	assert.NoError(t, s.Acquire(ctx3))
}

func TestSchedulerRateAt(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 100, RampUp: 10 * time.Second, MaxVUs: 10})

	assert.InDelta(t, 0, s.RateAt(0), 0.1)
	assert.InDelta(t, 50, s.RateAt(5*time.Second), 1)
	assert.InDelta(t, 100, s.RateAt(10*time.Second), 0.1)
	assert.InDelta(t, 100, s.RateAt(15*time.Second), 0.1)
}

func TestSchedulerVUsAt(t *testing.T) {
	s := NewScheduler(&Config{Mode: VUMode, VUs: 10, RampUp: 10 * time.Second, MaxVUs: 20})

	assert.Equal(t, 0, s.VUsAt(0))
	assert.Equal(t, 5, s.VUsAt(5*time.Second))
	assert.Equal(t, 10, s.VUsAt(10*time.Second))
	assert.Equal(t, 10, s.VUsAt(15*time.Second))
}

func TestSchedulerSetRate(t *testing.T) {
	s := NewScheduler(&Config{Mode: RateMode, Rate: 10, MaxVUs: 10})
	s.SetRate(100)

	assert.NoError(t, s.Wait(context.Background()))
}

func TestSchedulerTargetsReturnsCopy(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.Add(target("a", 1))
	s.Add(target("b", 1))

	targets := s.Targets()
	require.Len(t, targets, 2)

	targets[0] = nil
	assert.NotNil(t, s.Targets()[0])
}

func TestVUPoolScale(t *testing.T) {
	s := NewScheduler(&Config{Mode: VUMode, VUs: 4, MaxVUs: 10})
	s.Add(target("t", 1))

	var executions atomic.Int64
	pool := newVUPool(s, 5*time.Millisecond, func(ctx context.Context, tgt *Target) {
		executions.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.start(ctx, 2)
	assert.Equal(t, 2, pool.size())

	pool.scale(4)
	assert.Equal(t, 4, pool.size())

	pool.scale(1)
	assert.Equal(t, 1, pool.size())

	time.Sleep(30 * time.Millisecond)
	pool.shutdown()

	assert.Greater(t, executions.Load(), int64(0))
	assert.Equal(t, 0, pool.size())
}
