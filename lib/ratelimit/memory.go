package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type record struct {
	mu            sync.Mutex
	hits          []time.Time
	cooldownUntil time.Time
}

// Memory is the in-process Store. Keys live in an expirable LRU so that a
// hostile caller cycling through identities cannot grow the map without
// bound; counters are ephemeral and lost on restart, which is fine since a
// fresh failure re-trips any breaker quickly.
type Memory struct {
	mu        sync.Mutex
	records   *expirable.LRU[string, *record]
	retention time.Duration
}

// NewMemory bounds the store at maxKeys distinct keys, each expiring after
// retention of inactivity. Hits older than retention are pruned on access.
func NewMemory(maxKeys int, retention time.Duration) *Memory {
	if maxKeys <= 0 {
		maxKeys = 4096
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &Memory{
		records:   expirable.NewLRU[string, *record](maxKeys, nil, retention),
		retention: retention,
	}
}

func (m *Memory) get(key string) *record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records.Get(key); ok {
		return r
	}
	r := &record{}
	m.records.Add(key, r)
	return r
}

// peek reads without allocating a record for unknown keys or refreshing
// LRU recency; read-only callers must not churn key cardinality.
func (m *Memory) peek(key string) (*record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records.Peek(key)
}

func (r *record) prune(cutoff time.Time) {
	keep := r.hits[:0]
	for _, h := range r.hits {
		if !h.Before(cutoff) {
			keep = append(keep, h)
		}
	}
	r.hits = keep
}

func (m *Memory) Record(ctx context.Context, key string, now time.Time) error {
	r := m.get(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now.Add(-m.retention))
	r.hits = append(r.hits, now)
	return nil
}

func (m *Memory) CountSince(ctx context.Context, key string, cutoff time.Time) (int, error) {
	r, ok := m.peek(key)
	if !ok {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.hits {
		if !h.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SetCooldown(ctx context.Context, key string, until time.Time) error {
	r := m.get(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if until.After(r.cooldownUntil) {
		r.cooldownUntil = until
	}
	return nil
}

func (m *Memory) CooldownRemaining(ctx context.Context, key string, now time.Time) (time.Duration, error) {
	r, ok := m.peek(key)
	if !ok {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.cooldownUntil.Sub(now)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
