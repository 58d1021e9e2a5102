// Package schedule gates poll cycles to exchange trading hours.
package schedule

import (
	"fmt"
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
)

// Window is a daily open/close window on weekdays in one timezone.
type Window struct {
	loc   *time.Location
	open  time.Duration // offset from local midnight
	close time.Duration
}

// NewWindow builds the window described by cfg.
func NewWindow(cfg config.ScheduleConfig) (*Window, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	open, err := clock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeAt, err := clock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("close %s is not after open %s", cfg.Close, cfg.Open)
	}
	return &Window{loc: loc, open: open, close: closeAt}, nil
}

func clock(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Location returns the window's timezone.
func (w *Window) Location() *time.Location {
	return w.loc
}

// Contains reports whether t falls inside the window. Open is inclusive,
// close exclusive.
func (w *Window) Contains(t time.Time) bool {
	local := t.In(w.loc)
	if !tradingDay(local) {
		return false
	}
	since := local.Sub(midnight(local))
	return since >= w.open && since < w.close
}

// NextOpen returns the first window opening at or after t, or t itself
// when the window is already open.
func (w *Window) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	local := t.In(w.loc)
	day := midnight(local)
	if local.Sub(day) >= w.open {
		day = day.AddDate(0, 0, 1)
	}
	for !tradingDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(w.open)
}

func tradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
