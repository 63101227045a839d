package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClockTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("real ticker never fired")
	}
}

func TestMockClockStandsStill(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
	// Without Advance, repeated reads see the same instant.
	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("second Now() = %v, want %v", got, start)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestMockTickerFiresOnBoundary(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	select {
	case tick := <-ticker.C():
		t.Errorf("ticker fired at %v before the clock moved", tick)
	default:
	}

	clock.Advance(30 * time.Second)
	select {
	case tick := <-ticker.C():
		t.Errorf("ticker fired at %v before its first interval", tick)
	default:
	}

	clock.Advance(30 * time.Second)
	select {
	case tick := <-ticker.C():
		if want := start.Add(time.Minute); !tick.Equal(want) {
			t.Errorf("tick stamped %v, want %v", tick, want)
		}
	default:
		t.Error("ticker did not fire when the interval elapsed")
	}
}

func TestMockTickerFiresPerInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	// Draining between advances picks up one tick per boundary.
	for i := 1; i <= 3; i++ {
		clock.Advance(time.Minute)
		select {
		case tick := <-ticker.C():
			if want := start.Add(time.Duration(i) * time.Minute); !tick.Equal(want) {
				t.Errorf("tick %d stamped %v, want %v", i, tick, want)
			}
		default:
			t.Fatalf("ticker did not fire on advance %d", i)
		}
	}
}

func TestMockTickerDropsUnreadTicks(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	// Three boundaries pass with nobody reading; only one tick is buffered.
	clock.Advance(3 * time.Minute)

	ticks := 0
	for {
		select {
		case <-ticker.C():
			ticks++
			continue
		default:
		}
		break
	}
	if ticks != 1 {
		t.Errorf("buffered ticks = %d, want 1", ticks)
	}
}

func TestMockTickerStop(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Second)

	ticker.Stop()
	clock.Advance(time.Minute)

	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestMockClockMultipleTickers(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	fast := clock.NewTicker(time.Second)
	slow := clock.NewTicker(time.Hour)
	defer fast.Stop()
	defer slow.Stop()

	clock.Advance(time.Second)

	select {
	case <-fast.C():
	default:
		t.Error("fast ticker did not fire")
	}
	select {
	case <-slow.C():
		t.Error("slow ticker fired an hour early")
	default:
	}
}
