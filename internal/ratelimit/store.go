// Package ratelimit throttles repeated attempts per identifier using a fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Record is the attempt counter for one identifier.
type Record struct {
	Identifier   string
	AttemptCount int
	WindowStart  time.Time
}

// Store keeps attempt records. Hit must increment atomically per identifier and start a new
// window (count 1) when none exists or the previous one has elapsed.
type Store interface {
	Hit(ctx context.Context, identifier string, window time.Duration) (Record, error)
	Reset(ctx context.Context, identifier string) error
}

const pruneEvery = 256

type memoryRecord struct {
	Record
	window time.Duration
}

// MemoryStore is a process-local Store guarded by one mutex.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*memoryRecord
	hits    int
}

// NewMemoryStore creates an in-memory store. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, records: make(map[string]*memoryRecord)}
}

// Hit records one attempt for identifier.
func (s *MemoryStore) Hit(ctx context.Context, identifier string, window time.Duration) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.hits++
	if s.hits%pruneEvery == 0 {
		s.pruneLocked(now)
	}

	rec, ok := s.records[identifier]
	if !ok || now.Sub(rec.WindowStart) > window {
		rec = &memoryRecord{
			Record: Record{Identifier: identifier, AttemptCount: 1, WindowStart: now},
			window: window,
		}
		s.records[identifier] = rec
		return rec.Record, nil
	}
	rec.AttemptCount++
	rec.window = window
	return rec.Record, nil
}

// Reset drops the record for identifier.
func (s *MemoryStore) Reset(ctx context.Context, identifier string) error {
	s.mu.Lock()
	delete(s.records, identifier)
	s.mu.Unlock()
	return nil
}

// Len reports how many records are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Prune removes records whose window has elapsed.
func (s *MemoryStore) Prune() {
	s.mu.Lock()
	s.pruneLocked(s.now())
	s.mu.Unlock()
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for id, rec := range s.records {
		if now.Sub(rec.WindowStart) > rec.window {
			delete(s.records, id)
		}
	}
}
