package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recurlhq/recurl/packages/client"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag bool
	noColorFlag bool
	envFileFlag string
	curlFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "recurl",
	Short: "HTTP requests through a curl subprocess",
	Long: `recurl is an HTTP client that shells out to curl instead of using a
native network stack. Every request becomes one curl invocation; recurl
adds response shaping, retries with backoff, YAML collections with
captures and expectations, request history and load generation on top.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFileFlag == "" {
			return nil
		}
		if err := godotenv.Load(envFileFlag); err != nil {
			return fileError(fmt.Errorf("loading env file: %w", err))
		}
		return nil
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("RECURL_VERBOSE", false), "Verbose output (env: RECURL_VERBOSE)")
	pf.BoolVar(&noColorFlag, "no-color", getEnvBool("RECURL_NO_COLOR", false), "Disable colored output (env: RECURL_NO_COLOR)")
	pf.StringVar(&envFileFlag, "env-file", getEnvString("RECURL_ENV_FILE", ""), "Load variables from a .env file (env: RECURL_ENV_FILE)")
	pf.StringVar(&curlFlag, "curl", getEnvString("RECURL_CURL", ""), "Path to the curl binary (env: RECURL_CURL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the CLI logger: errors only by default, full
// development output with --verbose.
func newLogger() *zap.Logger {
	if verboseFlag {
		if logger, err := zap.NewDevelopment(); err == nil {
			return logger
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newClient assembles the request client from the global flags; opts come
// last so commands can override them.
func newClient(opts ...client.ClientOption) *client.Client {
	base := []client.ClientOption{client.WithLogger(newLogger())}
	if curlFlag != "" {
		base = append(base, client.WithBinary(curlFlag))
	}
	return client.NewClient(append(base, opts...)...)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
