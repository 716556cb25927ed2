package client

import (
	"net/http"
	"testing"
	"time"
)

func TestJitteredBackoff_Doubling(t *testing.T) {
	b := &JitteredBackoff{Initial: 100 * time.Millisecond, Ceiling: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{60, time.Second},
	}
	for _, tt := range tests {
		if got := b.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestJitteredBackoff_SpreadBounds(t *testing.T) {
	b := NewBackoff(42)
	for attempt := 0; attempt < 8; attempt++ {
		full := b.Initial << attempt
		if full > b.Ceiling {
			full = b.Ceiling
		}
		low := time.Duration(float64(full) * (1 - b.Spread))
		for i := 0; i < 50; i++ {
			got := b.Next(attempt)
			if got < low || got > full {
				t.Fatalf("Next(%d) = %v, want within [%v, %v]", attempt, got, low, full)
			}
		}
	}
}

func TestNewBackoff_SameSeedSamePauses(t *testing.T) {
	a, b := NewBackoff(7), NewBackoff(7)
	for attempt := 0; attempt < 10; attempt++ {
		if x, y := a.Next(attempt), b.Next(attempt); x != y {
			t.Errorf("Next(%d) = %v and %v, want equal for the same seed", attempt, x, y)
		}
	}
}

func TestRetryable(t *testing.T) {
	for status, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusCreated:             false,
		http.StatusBadRequest:          false,
		http.StatusNotFound:            false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusNotImplemented:      false,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	} {
		if got := retryable(status); got != want {
			t.Errorf("retryable(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-2", 0},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := retryAfter(h, now); got != tt.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
