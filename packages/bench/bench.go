package bench

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recurlhq/recurl/packages/client"
	"github.com/recurlhq/recurl/packages/reqfile"
	"github.com/recurlhq/recurl/packages/runner"
)

// Runner drives a load run over one collection.
type Runner struct {
	config    *Config
	client    *client.Client
	resolver  *reqfile.Resolver
	collector *Collector
	scheduler *Scheduler
	reporter  *Reporter
	logger    *zap.Logger

	file     *reqfile.File
	targets  []*Target
	setup    []reqfile.Request
	teardown []reqfile.Request
}

// Option configures the runner.
type Option func(*Runner)

// WithClient sets the request client.
func WithClient(c *client.Client) Option {
	return func(r *Runner) { r.client = c }
}

// WithResolver seeds variable resolution. Collection vars are layered on
// top when a file is loaded.
func WithResolver(resolver *reqfile.Resolver) Option {
	return func(r *Runner) { r.resolver = resolver }
}

// WithReporter sets the live progress reporter.
func WithReporter(reporter *Reporter) Option {
	return func(r *Runner) { r.reporter = reporter }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a load runner for the given config.
func NewRunner(config *Config, opts ...Option) *Runner {
	r := &Runner{
		config:    config,
		collector: NewCollector(),
		scheduler: NewScheduler(config),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.client == nil {
		r.client = client.NewClient()
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	if r.resolver == nil {
		r.resolver = reqfile.NewResolver()
		r.resolver.SetWarnFunc(r.logger.Sugar().Warnf)
	}

	return r
}

// LoadFile loads and validates a collection, then prepares its targets.
func (r *Runner) LoadFile(path string) error {
	file, err := reqfile.Load(path)
	if err != nil {
		return err
	}
	return r.Load(file)
}

// Load prepares targets from an already-parsed collection. Skipped
// requests are left out; setup and teardown requests run once around the
// measured window instead of inside it.
func (r *Runner) Load(file *reqfile.File) error {
	r.file = file
	r.resolver.SetVars(file.Vars)

	for _, req := range file.Requests {
		if req.Skip {
			continue
		}

		var b reqfile.Bench
		if req.Bench != nil {
			b = *req.Bench
		}
		switch {
		case b.Skip:
			continue
		case b.Setup:
			r.setup = append(r.setup, req)
		case b.Teardown:
			r.teardown = append(r.teardown, req)
		default:
			target := &Target{
				Request: req,
				Weight:  b.Weight,
				Think:   time.Duration(b.Think) * time.Millisecond,
			}
			r.targets = append(r.targets, target)
			r.scheduler.Add(target)
		}
	}

	if len(r.targets) == 0 {
		return errors.New("no requests to benchmark (all skipped or setup/teardown)")
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	Report     *Report
	Thresholds []ThresholdResult
	Passed     bool
}

// FailedThresholds lists the thresholds that did not hold.
func (r *Result) FailedThresholds() []ThresholdResult {
	var failed []ThresholdResult
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			failed = append(failed, tr)
		}
	}
	return failed
}

// Run executes the load run. The context bounds the whole run; within
// it, warmup plus the configured duration bound the load loop. Request
// failures land in the report, not in the returned error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bench config: %w", err)
	}
	if len(r.targets) == 0 {
		return nil, errors.New("no targets loaded")
	}

	r.reporter.Header(r.source(), r.config)

	if err := r.runSetup(ctx); err != nil {
		return nil, err
	}

	if r.config.MetricsAddr != "" {
		stop := r.serveMetrics()
		defer stop()
	}

	// Warmup traffic reaches the exporter but stays out of the report;
	// the collector starts measuring once the warmup ends.
	if r.config.Warmup > 0 {
		warmupTimer := time.AfterFunc(r.config.Warmup, r.collector.Start)
		defer warmupTimer.Stop()
	} else {
		r.collector.Start()
	}

	runCtx, cancel := context.WithTimeout(ctx, r.config.Warmup+r.config.Duration)
	defer cancel()

	started := time.Now()
	progressDone := make(chan struct{})
	go r.progressLoop(runCtx, started, progressDone)

	if r.config.Mode == VUMode {
		r.runVUs(runCtx)
	} else {
		r.runRate(runCtx)
	}

	r.collector.Stop()
	close(progressDone)
	r.reporter.ClearProgress()

	r.runTeardown()

	report := r.collector.Report()
	var thresholds []ThresholdResult
	if r.config.Thresholds.HasAny() {
		thresholds = EvaluateThresholds(report, r.config.Thresholds)
	}

	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}

	return &Result{Report: report, Thresholds: thresholds, Passed: passed}, nil
}

// source names the run for the header: the collection path, or the URL
// when a single ad-hoc target was synthesized.
func (r *Runner) source() string {
	if r.file != nil && r.file.Path != "" {
		return r.file.Path
	}
	if len(r.targets) == 1 {
		return r.targets[0].Request.URL
	}
	if r.file != nil && r.file.Name != "" {
		return r.file.Name
	}
	return fmt.Sprintf("%d requests", len(r.targets))
}

func (r *Runner) serveMetrics() func() {
	exporter := NewExporter()
	r.collector.SetExporter(exporter)

	server := NewMetricsServer(r.config.MetricsAddr, exporter)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Stop(stopCtx); err != nil {
			r.logger.Warn("stopping metrics server", zap.Error(err))
		}
	}
}

// runSetup executes setup requests once, in order. Their captures feed
// the resolver so benched requests can use values like auth tokens.
func (r *Runner) runSetup(ctx context.Context) error {
	for _, req := range r.setup {
		r.reporter.Info("setup: %s", req.Name)
		resp, err := r.execute(ctx, req)
		if err != nil {
			return fmt.Errorf("setup request %q failed: %w", req.Name, err)
		}
		r.applyCaptures(req, resp)
	}
	return nil
}

// runTeardown runs cleanup requests on a fresh context, so a cancelled
// run still tears down what its setup created.
func (r *Runner) runTeardown() {
	if len(r.teardown) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, req := range r.teardown {
		r.reporter.Info("teardown: %s", req.Name)
		if _, err := r.execute(ctx, req); err != nil {
			r.reporter.Error("teardown request %q failed: %v", req.Name, err)
		}
	}
}

func (r *Runner) execute(ctx context.Context, req reqfile.Request) (*client.Response, error) {
	opts, err := runner.BuildOptions(r.file, req, r.resolver)
	if err != nil {
		return nil, err
	}
	return r.client.Do(ctx, opts)
}

func (r *Runner) applyCaptures(req reqfile.Request, resp *client.Response) {
	for name, path := range req.Capture {
		value := resp.JSON().Get(path)
		if !value.Exists() {
			r.logger.Warn("capture path not found",
				zap.String("request", req.Name),
				zap.String("capture", name),
				zap.String("path", path))
			continue
		}
		r.resolver.SetCapture(req.Name, name, value.Value())
	}
}

// runRate paces requests with the limiter, adjusting it during ramp-up.
func (r *Runner) runRate(ctx context.Context) {
	var wg sync.WaitGroup
	started := time.Now()

	var ramp *time.Ticker
	if r.config.RampUp > 0 {
		ramp = time.NewTicker(100 * time.Millisecond)
		defer ramp.Stop()
	}

	for ctx.Err() == nil {
		if ramp != nil {
			select {
			case <-ramp.C:
				r.scheduler.SetRate(r.scheduler.RateAt(time.Since(started)))
			default:
			}
		}

		if err := r.scheduler.Wait(ctx); err != nil {
			break
		}

		target := r.scheduler.Pick()
		if target == nil {
			break
		}

		if err := r.scheduler.Acquire(ctx); err != nil {
			break
		}

		wg.Add(1)
		go func(t *Target) {
			defer wg.Done()
			defer r.scheduler.Release()
			r.executeTarget(ctx, t)
		}(target)
	}

	wg.Wait()
}

// runVUs keeps a pool of virtual users looping until the window closes.
func (r *Runner) runVUs(ctx context.Context) {
	pool := newVUPool(r.scheduler, r.config.ThinkTime, func(vuCtx context.Context, t *Target) {
		r.executeTarget(vuCtx, t)
	})

	initial := r.config.VUs
	if r.config.RampUp > 0 {
		initial = r.scheduler.VUsAt(0)
	}
	pool.start(ctx, initial)

	if r.config.RampUp > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		started := time.Now()
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pool.scale(r.scheduler.VUsAt(time.Since(started)))
				}
			}
		}()
	}

	<-ctx.Done()
	pool.shutdown()
}

// executeTarget builds and fires one request, recording its latency.
// Requests cut off by the end of the window are dropped rather than
// recorded, so the shutdown tail does not skew the numbers.
func (r *Runner) executeTarget(ctx context.Context, t *Target) {
	r.collector.RequestStarted()
	defer r.collector.RequestDone()

	start := time.Now()
	opts, err := runner.BuildOptions(r.file, t.Request, r.resolver)
	if err == nil {
		_, err = r.client.Do(ctx, opts)
	}
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		// Window closed mid-flight.
	case isTimeout(err):
		r.collector.RecordTimeout(t.Request.Name)
	default:
		r.collector.Record(t.Request.Name, elapsed, err)
	}
}

// isTimeout reports whether the request died waiting. curl exits with 28
// (CURLE_OPERATION_TIMEDOUT) when -m expires.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 28 {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) progressLoop(ctx context.Context, started time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	total := r.config.Warmup + r.config.Duration
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reporter.Progress(r.collector.Live(), time.Since(started), total)
		}
	}
}
