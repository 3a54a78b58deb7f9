// Package cache provides a content-addressed, TTL-bounded store for remote
// extraction results.
//
// Keys are page-image fingerprints, so perceptually identical pages across
// documents share one entry. Entries live for the configured TTL and the
// store holds at most MaxEntries records; eviction removes expired entries
// first and then the oldest-inserted until under capacity. The cache only
// ever holds successful remote extractions: local results are cheap to
// recompute and are deliberately not stored. Lifetime is the process.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pjojoa/DocuMarval/internal/logger"
	"github.com/pjojoa/DocuMarval/pkg/models"
)

const (
	// DefaultTTL matches the legacy 24-hour result cache.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxEntries bounds memory for very large batch runs.
	DefaultMaxEntries = 500
)

type entry struct {
	record     models.BillRecord
	insertedAt time.Time
}

// Store maps image fingerprints to previously extracted records.
type Store struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]entry
	order   []string // fingerprints in insertion order

	now func() time.Time

	log zerolog.Logger
}

// New creates a store with the given TTL and capacity. Non-positive values
// fall back to the defaults.
func New(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
		now:        time.Now,
		log:        logger.WithComponent("cache"),
	}
}

// Get returns the cached record for fingerprint, if present and unexpired.
func (s *Store) Get(fingerprint string) (models.BillRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		return models.BillRecord{}, false
	}
	if s.now().Sub(e.insertedAt) >= s.ttl {
		delete(s.entries, fingerprint)
		s.dropFromOrder(fingerprint)
		return models.BillRecord{}, false
	}
	return e.record, true
}

// Put stores a record under fingerprint, evicting as needed. Re-inserting an
// existing fingerprint refreshes its insertion time.
func (s *Store) Put(fingerprint string, record models.BillRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[fingerprint]; ok {
		s.dropFromOrder(fingerprint)
	}
	s.entries[fingerprint] = entry{record: record, insertedAt: s.now()}
	s.order = append(s.order, fingerprint)

	if len(s.entries) > s.maxEntries {
		s.evict()
	}
}

// Len reports the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evict removes expired entries first, then oldest-inserted entries until the
// store is within capacity. Caller holds mu.
func (s *Store) evict() {
	now := s.now()
	kept := s.order[:0]
	for _, fp := range s.order {
		e, ok := s.entries[fp]
		if !ok {
			continue
		}
		if now.Sub(e.insertedAt) >= s.ttl {
			delete(s.entries, fp)
			continue
		}
		kept = append(kept, fp)
	}
	s.order = kept

	for len(s.entries) > s.maxEntries && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}

	s.log.Debug().Int("entries", len(s.entries)).Msg("Cache evicted")
}

// dropFromOrder removes one occurrence of fingerprint. Caller holds mu.
func (s *Store) dropFromOrder(fingerprint string) {
	for i, fp := range s.order {
		if fp == fingerprint {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
