package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, RateMode, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, float64(10), cfg.Rate)
	assert.Equal(t, 100, cfg.MaxVUs)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid rate mode config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "valid vu mode config",
			config: &Config{
				Mode:     VUMode,
				Duration: 30 * time.Second,
				VUs:      10,
				MaxVUs:   100,
			},
			wantErr: false,
		},
		{
			name: "zero duration",
			config: &Config{
				Mode:     RateMode,
				Duration: 0,
				Rate:     10,
				MaxVUs:   100,
			},
			wantErr: true,
		},
		{
			name: "zero rate in rate mode",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     0,
				MaxVUs:   100,
			},
			wantErr: true,
		},
		{
			name: "zero vus in vu mode",
			config: &Config{
				Mode:     VUMode,
				Duration: 30 * time.Second,
				VUs:      0,
				MaxVUs:   100,
			},
			wantErr: true,
		},
		{
			name: "zero max vus",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     10,
				MaxVUs:   0,
			},
			wantErr: true,
		},
		{
			name: "negative warmup",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     10,
				MaxVUs:   100,
				Warmup:   -time.Second,
			},
			wantErr: true,
		},
		{
			name: "ramp-up exceeds duration",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     10,
				MaxVUs:   100,
				RampUp:   60 * time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Thresholds
		wantErr  bool
	}{
		{
			name:     "p95 latency",
			input:    "p95<200ms",
			expected: Thresholds{P95: 200 * time.Millisecond},
		},
		{
			name:  "multiple thresholds",
			input: "p50<50ms, p99<1s, errors<1%, rps>100",
			expected: Thresholds{
				P50:       50 * time.Millisecond,
				P99:       time.Second,
				ErrorRate: 0.01,
				MinRPS:    100,
			},
		},
		{
			name:     "error rate as ratio",
			input:    "errors<0.05",
			expected: Thresholds{ErrorRate: 0.05},
		},
		{
			name:     "max latency",
			input:    "max<=2s",
			expected: Thresholds{MaxLatency: 2 * time.Second},
		},
		{
			name:    "unknown metric",
			input:   "p42<100ms",
			wantErr: true,
		},
		{
			name:    "bad duration",
			input:   "p95<fast",
			wantErr: true,
		},
		{
			name:    "latency with wrong operator",
			input:   "p95>200ms",
			wantErr: true,
		},
		{
			name:    "rps with wrong operator",
			input:   "rps<100",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "not a threshold",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseThresholds(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestThresholdsHasAny(t *testing.T) {
	var none Thresholds
	assert.False(t, none.HasAny())

	assert.True(t, (&Thresholds{P95: time.Millisecond}).HasAny())
	assert.True(t, (&Thresholds{ErrorRate: 0.01}).HasAny())
	assert.True(t, (&Thresholds{MinRPS: 1}).HasAny())
}
