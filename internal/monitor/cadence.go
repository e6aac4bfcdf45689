package monitor

import (
	"fmt"
	"sync"
	"time"
)

// Cadence decides when the once-daily digest is due. The rule is windowed
// rather than exact-minute: the digest is due as soon as the wall clock is at
// or past the configured HH:MM and no digest has been sent today, so a
// delayed or skipped tick still triggers exactly once per day.
type Cadence struct {
	mu         sync.Mutex
	hour       int
	minute     int
	lastReport time.Time // date of the last digest; zero means never
}

// NewCadence parses a "HH:MM" report time.
func NewCadence(reportTime string) (*Cadence, error) {
	t, err := time.Parse("15:04", reportTime)
	if err != nil {
		return nil, fmt.Errorf("invalid report time %q (want HH:MM): %w", reportTime, err)
	}
	return &Cadence{hour: t.Hour(), minute: t.Minute()}, nil
}

// IsDue reports whether the daily digest should be sent now. Callers must
// invoke MarkReported after actually sending it.
func (c *Cadence) IsDue(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sameDate(c.lastReport, now) {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, now.Location())
	return !now.Before(target)
}

// MarkReported records that the digest was sent on now's date.
func (c *Cadence) MarkReported(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReport = now
}

func sameDate(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
