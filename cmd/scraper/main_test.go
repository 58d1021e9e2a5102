package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{headless: true, timeout: 10 * time.Minute},
		},
		{
			name: "single cycle on one exchange",
			args: []string{"-once", "-exchange", "bse", "-ignore-market-hours"},
			want: options{once: true, exchanges: "bse", ignoreMarketHours: true, headless: true, timeout: 10 * time.Minute},
		},
		{
			name: "interval and headed browser",
			args: []string{"-interval", "5m", "-headless=false", "-config", "configs/prod.yaml"},
			want: options{interval: 5 * time.Minute, configFile: "configs/prod.yaml", timeout: 10 * time.Minute},
		},
		{
			name:    "negative interval",
			args:    []string{"-interval", "-1m"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"-mode", "initial"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("GAINIPO_CONFIG", "")

	cfg, err := loadConfig(options{
		configFile:        "does-not-exist.yaml",
		interval:          2 * time.Minute,
		ignoreMarketHours: true,
		headless:          false,
	})
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Schedule.Interval)
	assert.False(t, cfg.Schedule.Enforce)
	assert.False(t, cfg.Sources.NSE.Headless)
}

func TestLoadConfig_KeepsConfiguredInterval(t *testing.T) {
	cfg, err := loadConfig(options{configFile: "does-not-exist.yaml", headless: true})
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
	assert.True(t, cfg.Schedule.Enforce)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, map[string]int{"stored": 2}))
	assert.JSONEq(t, `{"stored":2}`, buf.String())
}
