// Package ratelimit implements process-wide sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second
)

type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter admits at most MaxRequests within any trailing Window. It keeps one
// timestamp per admitted request and never queues or delays callers.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	window []time.Time
}

type Decision struct {
	Allowed bool
	// RetryAfter is the time until the oldest admitted request leaves the
	// window. Zero when allowed.
	RetryAfter time.Duration
}

func New(cfg Config) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{cfg: cfg, now: time.Now}
}

// Allow is Admit at the current time, reduced to a bool.
func (l *Limiter) Allow() bool {
	return l.Admit(l.now()).Allowed
}

// Admit evicts timestamps older than the window, denies without recording when
// the window is full, and otherwise records now.
func (l *Limiter) Admit(now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window)
	drop := 0
	for drop < len(l.window) && !l.window[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		l.window = append(l.window[:0], l.window[drop:]...)
	}

	if len(l.window) >= l.cfg.MaxRequests {
		retry := l.window[0].Add(l.cfg.Window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}
	l.window = append(l.window, now)
	return Decision{Allowed: true}
}

func (l *Limiter) Config() Config {
	return l.cfg
}
