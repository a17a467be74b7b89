package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/bench"
	"github.com/recurlhq/recurl/packages/output"
	"github.com/recurlhq/recurl/packages/reqfile"
)

var benchCmd = &cobra.Command{
	Use:   "bench [url]",
	Short: "Generate load against a URL or a collection",
	Long: `Generate load through the curl client, against a single URL or the
requests of a collection file, and grade the outcome against thresholds.

Examples:
  recurl bench https://api.example.com/health --duration 1m --rate 100
  recurl bench -f api.yaml --duration 30s --vus 50
  recurl bench https://api.example.com/health --threshold "p95<200ms,errors<1%"
  recurl bench -f api.yaml --metrics-addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: benchCommand,
}

var (
	benchFileFlag       string
	benchMethodFlag     string
	benchDurationFlag   time.Duration
	benchRateFlag       float64
	benchVUsFlag        int
	benchMaxVUsFlag     int
	benchThinkFlag      time.Duration
	benchRampUpFlag     time.Duration
	benchWarmupFlag     time.Duration
	benchThresholdFlag  string
	benchNoProgressFlag bool
	benchJSONFlag       bool
	benchMetricsFlag    string
)

func init() {
	benchCmd.Flags().StringVarP(&benchFileFlag, "file", "f", "", "Benchmark a collection file instead of a URL")
	benchCmd.Flags().StringVarP(&benchMethodFlag, "method", "X", "GET", "Method for URL mode")
	benchCmd.Flags().DurationVarP(&benchDurationFlag, "duration", "d", 30*time.Second, "Measured duration (e.g. 30s, 5m)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", 10, "Target requests per second")
	benchCmd.Flags().IntVar(&benchVUsFlag, "vus", 0, "Number of virtual users (alternative to rate)")
	benchCmd.Flags().IntVar(&benchMaxVUsFlag, "max-vus", 100, "Maximum concurrent requests")
	benchCmd.Flags().DurationVar(&benchThinkFlag, "think-time", 0, "Pause per virtual user between iterations")
	benchCmd.Flags().DurationVar(&benchRampUpFlag, "ramp-up", 0, "Time to reach the target rate or VU count")
	benchCmd.Flags().DurationVar(&benchWarmupFlag, "warmup", 0, "Lead-in traffic excluded from the report")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", "", `Pass/fail thresholds (e.g. "p95<200ms,errors<1%")`)
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable the live progress line")
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Print the report as JSON")
	benchCmd.Flags().StringVar(&benchMetricsFlag, "metrics-addr", getEnvString("RECURL_METRICS_ADDR", ""), "Serve Prometheus metrics on this address during the run (env: RECURL_METRICS_ADDR)")
}

func benchCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && benchFileFlag == "" {
		return fmt.Errorf("nothing to benchmark: give a URL or --file")
	}
	if len(args) > 0 && benchFileFlag != "" {
		return fmt.Errorf("give a URL or --file, not both")
	}

	cfg, err := buildBenchConfig()
	if err != nil {
		return err
	}

	reporter := bench.NewReporter(
		bench.WithNoColor(noColorFlag),
		bench.WithNoProgress(benchNoProgressFlag || benchJSONFlag),
	)
	r := bench.NewRunner(cfg,
		bench.WithClient(newClient()),
		bench.WithReporter(reporter),
		bench.WithLogger(newLogger()),
	)

	if benchFileFlag != "" {
		if err := r.LoadFile(benchFileFlag); err != nil {
			return fileError(err)
		}
	} else {
		adhoc := &reqfile.File{
			Requests: []reqfile.Request{{
				Name:   "bench",
				Method: benchMethodFlag,
				URL:    args[0],
			}},
		}
		if err := r.Load(adhoc); err != nil {
			return internalError(err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping...")
		cancel()
	}()

	result, err := r.Run(ctx)
	if err != nil {
		return requestError(err)
	}

	if benchJSONFlag {
		if err := output.WriteBenchJSON(os.Stdout, result); err != nil {
			return internalError(err)
		}
	} else {
		formatter := output.NewConsoleFormatter(
			output.WithVerbose(verboseFlag),
			output.WithNoColor(noColorFlag),
		)
		formatter.FormatBench(result)
	}

	if !result.Passed {
		return requestError(fmt.Errorf("%d threshold(s) failed", len(result.FailedThresholds())))
	}
	return nil
}

func buildBenchConfig() (*bench.Config, error) {
	cfg := bench.DefaultConfig()
	cfg.Duration = benchDurationFlag
	cfg.Rate = benchRateFlag
	cfg.MaxVUs = benchMaxVUsFlag
	cfg.ThinkTime = benchThinkFlag
	cfg.RampUp = benchRampUpFlag
	cfg.Warmup = benchWarmupFlag
	cfg.MetricsAddr = benchMetricsFlag

	if benchVUsFlag > 0 {
		cfg.Mode = bench.VUMode
		cfg.VUs = benchVUsFlag
	}

	if benchThresholdFlag != "" {
		t, err := bench.ParseThresholds(benchThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
