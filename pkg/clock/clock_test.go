package clock

import (
	"testing"
	"time"
)

func TestZoneClockDateStamp(t *testing.T) {
	clk, err := NewZoneClock("Asia/Seoul")
	if err != nil {
		t.Fatalf("NewZoneClock: %v", err)
	}

	// 2026-03-14T16:30:00Z is already the 15th in Seoul (UTC+9).
	at := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)
	if got := clk.DateStamp(at); got != "20260315" {
		t.Errorf("DateStamp = %s, want 20260315", got)
	}

	at = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if got := clk.DateStamp(at); got != "20260314" {
		t.Errorf("DateStamp = %s, want 20260314", got)
	}
}

func TestZoneClockUnknownZone(t *testing.T) {
	if _, err := NewZoneClock("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestFrozenClock(t *testing.T) {
	instant := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clk := Frozen{Instant: instant}
	if !clk.Now().Equal(instant) {
		t.Errorf("Now() = %v, want %v", clk.Now(), instant)
	}
	if got := clk.DateStamp(clk.Now()); got != "20260314" {
		t.Errorf("DateStamp = %s, want 20260314", got)
	}
}
