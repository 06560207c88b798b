package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottlesWithinInterval(t *testing.T) {
	c := NewCounter(time.Hour)
	if total, ok := c.Inc(); !ok || total != 1 {
		t.Fatalf("first increment should log, got total=%d ok=%v", total, ok)
	}
	for i := 0; i < 5; i++ {
		if _, ok := c.Inc(); ok {
			t.Fatalf("increment %d should be throttled", i+2)
		}
	}
	if c.Total() != 6 {
		t.Fatalf("expected total 6, got %d", c.Total())
	}
}

func TestCounterZeroIntervalAlwaysLogs(t *testing.T) {
	c := NewCounter(0)
	for i := 0; i < 3; i++ {
		if _, ok := c.Inc(); !ok {
			t.Fatalf("zero interval should never throttle")
		}
	}
}

func TestCounterNil(t *testing.T) {
	var c *Counter
	if total, ok := c.Inc(); total != 0 || ok {
		t.Fatalf("nil counter should be inert")
	}
}
