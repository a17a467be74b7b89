package bench

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/recurlhq/recurl/packages/reqfile"
)

// Target is one request taking part in the run.
type Target struct {
	Request reqfile.Request
	Weight  int
	Think   time.Duration // overrides the config think time for this target
}

// Scheduler decides which target fires next and enforces the rate and
// concurrency limits.
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	slots   chan struct{}

	mu          sync.Mutex
	targets     []*Target
	totalWeight int
}

// NewScheduler sizes the limiter and the concurrency slots from the
// config.
func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{config: config}

	if config.Mode == RateMode && config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	maxVUs := config.MaxVUs
	if maxVUs < 1 {
		maxVUs = 100
	}
	s.slots = make(chan struct{}, maxVUs)

	return s
}

// Add registers a target. Weights below one count as one.
func (s *Scheduler) Add(t *Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Weight < 1 {
		t.Weight = 1
	}
	s.targets = append(s.targets, t)
	s.totalWeight += t.Weight
}

// Pick selects the next target, biased by weight.
func (s *Scheduler) Pick() *Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.targets) {
	case 0:
		return nil
	case 1:
		return s.targets[0]
	}

	n := rand.Intn(s.totalWeight)
	for _, t := range s.targets {
		n -= t.Weight
		if n < 0 {
			return t
		}
	}
	return s.targets[len(s.targets)-1]
}

// Wait blocks until the limiter admits the next request. Without a
// limiter (VU mode) it returns immediately.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// Acquire takes a concurrency slot.
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a concurrency slot.
func (s *Scheduler) Release() {
	<-s.slots
}

// RateAt returns the target rate after elapsed run time, honoring
// ramp-up.
func (s *Scheduler) RateAt(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}
	return s.config.Rate * (float64(elapsed) / float64(s.config.RampUp))
}

// VUsAt returns the target VU count after elapsed run time.
func (s *Scheduler) VUsAt(elapsed time.Duration) int {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.VUs
	}
	return int(float64(s.config.VUs) * (float64(elapsed) / float64(s.config.RampUp)))
}

// SetRate adjusts the limiter mid-run.
func (s *Scheduler) SetRate(r float64) {
	if s.limiter != nil && r > 0 {
		s.limiter.SetLimit(rate.Limit(r))
	}
}

// Targets returns the registered targets.
func (s *Scheduler) Targets() []*Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Target, len(s.targets))
	copy(out, s.targets)
	return out
}

// vu is one virtual user looping over targets until cancelled.
type vu struct {
	scheduler *Scheduler
	think     time.Duration
	execute   func(ctx context.Context, t *Target)
	cancel    context.CancelFunc
}

func (u *vu) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		target := u.scheduler.Pick()
		if target == nil {
			return
		}

		if err := u.scheduler.Acquire(ctx); err != nil {
			return
		}
		u.execute(ctx, target)
		u.scheduler.Release()

		pause := u.think
		if target.Think > 0 {
			pause = target.Think
		}
		if pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
		}
	}
}

// vuPool grows and shrinks the set of running virtual users.
type vuPool struct {
	scheduler *Scheduler
	think     time.Duration
	execute   func(ctx context.Context, t *Target)

	mu   sync.Mutex
	vus  []*vu
	wg   sync.WaitGroup
	ctx  context.Context
	stop context.CancelFunc
}

func newVUPool(s *Scheduler, think time.Duration, execute func(ctx context.Context, t *Target)) *vuPool {
	return &vuPool{scheduler: s, think: think, execute: execute}
}

func (p *vuPool) start(ctx context.Context, count int) {
	p.ctx, p.stop = context.WithCancel(ctx)
	if count < 1 {
		count = 1
	}
	p.scale(count)
}

// scale adds or stops virtual users to reach count. Scaling down cancels
// the newest users first; a user mid-request is cut off with its context.
func (p *vuPool) scale(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.vus) < count {
		u := &vu{scheduler: p.scheduler, think: p.think, execute: p.execute}
		vuCtx, cancel := context.WithCancel(p.ctx)
		u.cancel = cancel
		p.wg.Add(1)
		go u.run(vuCtx, &p.wg)
		p.vus = append(p.vus, u)
	}

	for len(p.vus) > count && len(p.vus) > 0 {
		last := len(p.vus) - 1
		p.vus[last].cancel()
		p.vus = p.vus[:last]
	}
}

func (p *vuPool) shutdown() {
	p.mu.Lock()
	for _, u := range p.vus {
		u.cancel()
	}
	p.vus = nil
	p.mu.Unlock()

	if p.stop != nil {
		p.stop()
	}
	p.wg.Wait()
}

func (p *vuPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.vus)
}
