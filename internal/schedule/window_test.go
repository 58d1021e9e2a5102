package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
)

func defaultWindow(t *testing.T) *Window {
	t.Helper()
	w, err := NewWindow(config.Default().Schedule)
	require.NoError(t, err)
	return w
}

func TestWindow_Contains(t *testing.T) {
	w := defaultWindow(t)
	ist := w.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday before open", time.Date(2024, 1, 15, 9, 59, 0, 0, ist), false},
		{"monday at open", time.Date(2024, 1, 15, 10, 0, 0, 0, ist), true},
		{"monday midday", time.Date(2024, 1, 15, 13, 0, 0, 0, ist), true},
		{"monday last minute", time.Date(2024, 1, 15, 17, 29, 59, 0, ist), true},
		{"monday at close", time.Date(2024, 1, 15, 17, 30, 0, 0, ist), false},
		{"saturday midday", time.Date(2024, 1, 20, 12, 0, 0, 0, ist), false},
		{"sunday midday", time.Date(2024, 1, 21, 12, 0, 0, 0, ist), false},
		{"utc instant inside IST hours", time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC), true},
		{"utc instant after IST close", time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.at))
		})
	}
}

func TestWindow_NextOpen(t *testing.T) {
	w := defaultWindow(t)
	ist := w.Location()

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"early morning", time.Date(2024, 1, 15, 7, 0, 0, 0, ist), time.Date(2024, 1, 15, 10, 0, 0, 0, ist)},
		{"already open", time.Date(2024, 1, 15, 11, 0, 0, 0, ist), time.Date(2024, 1, 15, 11, 0, 0, 0, ist)},
		{"after close", time.Date(2024, 1, 15, 18, 0, 0, 0, ist), time.Date(2024, 1, 16, 10, 0, 0, 0, ist)},
		{"friday evening skips weekend", time.Date(2024, 1, 19, 18, 0, 0, 0, ist), time.Date(2024, 1, 22, 10, 0, 0, 0, ist)},
		{"saturday morning", time.Date(2024, 1, 20, 8, 0, 0, 0, ist), time.Date(2024, 1, 22, 10, 0, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(w.NextOpen(tt.at)), "got %s", w.NextOpen(tt.at))
		})
	}
}

func TestNewWindow_Invalid(t *testing.T) {
	base := config.Default().Schedule

	bad := base
	bad.Timezone = "Mars/Olympus"
	_, err := NewWindow(bad)
	assert.Error(t, err)

	bad = base
	bad.Open = "25:00"
	_, err = NewWindow(bad)
	assert.Error(t, err)

	bad = base
	bad.Open, bad.Close = "17:00", "10:00"
	_, err = NewWindow(bad)
	assert.Error(t, err)
}
