package output

import (
	"fmt"
	"time"

	"github.com/recurlhq/recurl/packages/runner"
)

// Formatter renders collection run results.
type Formatter interface {
	FormatRun(result *runner.RunResult)
	FormatError(err error)
}

// Flusher is implemented by formatters that buffer until all runs finish.
type Flusher interface {
	Flush(total time.Duration) error
}

// formatValue renders a captured or expected value for display, summarizing
// containers and truncating long strings.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
