package utils

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	var s ReconnectStrategy = NewExponentialBackoffWith(100*time.Millisecond, 500*time.Millisecond)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	for i, w := range want {
		if got := s.NextDelay(); got != w {
			t.Fatalf("delay %d = %v, want %v", i, got, w)
		}
	}

	s.Reset()
	if got := s.NextDelay(); got != 100*time.Millisecond {
		t.Fatalf("delay after reset = %v", got)
	}
}

func TestDefaultBackoffStartsAtOneSecond(t *testing.T) {
	if got := NewExponentialBackoff().NextDelay(); got != time.Second {
		t.Fatalf("first delay = %v", got)
	}
}
