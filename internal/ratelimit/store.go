// Package ratelimit caps how often a client may open provider sessions.
// Counting uses a sliding window so bursts at a window boundary are not
// doubled.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long until a refused caller may retry, in whole seconds.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// sweepEvery bounds how often MemoryStore scans for idle keys.
const sweepEvery = time.Minute

// MemoryStore keeps sliding windows in process memory. It is not shared
// between replicas. Keys whose window has emptied are dropped on a periodic
// sweep.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	windows   map[string]*slidingWindow
	lastSweep time.Time
}

type slidingWindow struct {
	stamps []time.Time
	length time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, windows: make(map[string]*slidingWindow)}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepEvery {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok {
		w = &slidingWindow{}
		s.windows[key] = w
	}
	w.length = window
	w.stamps = prune(w.stamps, now.Add(-window))

	if len(w.stamps) >= limit {
		reset := now.Add(window)
		if len(w.stamps) > 0 {
			reset = w.stamps[0].Add(window)
		}
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: reset}, nil
	}

	w.stamps = append(w.stamps, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.stamps),
		ResetAt:   w.stamps[0].Add(window),
	}, nil
}

// sweep drops keys with no request left inside their window.
func (s *MemoryStore) sweep(now time.Time) {
	for key, w := range s.windows {
		w.stamps = prune(w.stamps, now.Add(-w.length))
		if len(w.stamps) == 0 {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}

// prune drops timestamps at or before cutoff.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
