package client

import (
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Backoff yields the pause before retry attempt n, counted from 0.
type Backoff interface {
	Next(attempt int) time.Duration
}

// JitteredBackoff doubles Initial per attempt up to Ceiling. The last
// Spread fraction of each pause is drawn at random, so pauses fall in
// [d*(1-Spread), d].
type JitteredBackoff struct {
	Initial time.Duration
	Ceiling time.Duration
	Spread  float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff returns the client's default pacing: 100ms doubling to 5s
// with a quarter of each pause random. A zero seed draws from the clock.
func NewBackoff(seed int64) *JitteredBackoff {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &JitteredBackoff{
		Initial: 100 * time.Millisecond,
		Ceiling: 5 * time.Second,
		Spread:  0.25,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *JitteredBackoff) draw() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return b.rng.Float64()
}

func (b *JitteredBackoff) Next(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt && d < b.Ceiling; i++ {
		d *= 2
	}
	if d > b.Ceiling {
		d = b.Ceiling
	}
	if b.Spread <= 0 || d <= 0 {
		return d
	}
	spread := b.Spread
	if spread > 1 {
		spread = 1
	}
	fixed := float64(d) * (1 - spread)
	return time.Duration(fixed + float64(d)*spread*b.draw())
}

// retryable reports whether a status may succeed when sent again. Run
// creation is idempotent on the daemon: a repeated cluster request answers
// 200 with the stored run, so retrying after a lost 201 is safe.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP
// date. Unparseable or past values yield 0.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
