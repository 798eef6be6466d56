package httpapi

import (
	"sync"
	"time"
)

// loginLimiter is a sliding-window attempt counter keyed by ip or login.
type loginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
	sweptAt time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		window:  5 * time.Minute,
		max:     10,
		entries: make(map[string][]time.Time),
	}
}

func (l *loginLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	if now.Sub(l.sweptAt) > l.window {
		l.sweep(cutoff)
		l.sweptAt = now
	}

	ts := prune(l.entries[key], cutoff)
	if len(ts) >= l.max {
		l.entries[key] = ts
		return false
	}
	l.entries[key] = append(ts, now)
	return true
}

// sweep drops keys whose attempts all fell out of the window.
func (l *loginLimiter) sweep(cutoff time.Time) {
	for k, ts := range l.entries {
		if ts = prune(ts, cutoff); len(ts) == 0 {
			delete(l.entries, k)
		} else {
			l.entries[k] = ts
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
