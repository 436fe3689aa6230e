/**
 * @description
 * This package provides the canonical clock and calendar for the ledger.
 * All daily-limit window calculations use one fixed reference time zone, so
 * the rest of the system never asks the host for local time directly.
 */

package clock

import (
	"fmt"
	"time"
)

// DateStampLayout is the calendar-day format used for daily-limit buckets.
const DateStampLayout = "20060102"

// Clock supplies the current time and the calendar-day date stamp in the
// canonical reference zone.
type Clock interface {
	Now() time.Time
	DateStamp(t time.Time) string
}

// ZoneClock is the production Clock, pinned to a fixed IANA time zone.
type ZoneClock struct {
	loc *time.Location
}

// NewZoneClock loads the given IANA zone name (e.g. "Asia/Seoul").
func NewZoneClock(zone string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return &ZoneClock{loc: loc}, nil
}

// Now returns the current time in the reference zone.
func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// DateStamp formats t as a yyyyMMdd calendar day in the reference zone.
func (c *ZoneClock) DateStamp(t time.Time) string {
	return t.In(c.loc).Format(DateStampLayout)
}

// Frozen is a Clock pinned to a single instant, for tests.
type Frozen struct {
	Instant time.Time
}

func (f Frozen) Now() time.Time { return f.Instant }

func (f Frozen) DateStamp(t time.Time) string { return t.Format(DateStampLayout) }
