// Package cache maps barcodes to nutrition records and persists the mapping
// through a pluggable Backend.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"go.trai.ch/zerr"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

var (
	// ErrLoadFailed is returned when a backend cannot produce the cache document.
	ErrLoadFailed = zerr.New("failed to load nutrition cache")

	// ErrSaveFailed is returned when a backend cannot persist the cache document.
	ErrSaveFailed = zerr.New("failed to save nutrition cache")

	// ErrInvalidEntry is returned by Put for an empty barcode or an empty record.
	ErrInvalidEntry = zerr.New("invalid cache entry")
)

// Backend loads and saves the whole cache document. Save always receives
// the complete mapping and replaces whatever was stored before.
type Backend interface {
	Load(ctx context.Context) (map[string]nutrition.Record, error)
	Save(ctx context.Context, records map[string]nutrition.Record) error
}

// Store is the in-memory view of the cache. It is safe for concurrent use
// within one process; writers in separate processes still race on Save.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.RWMutex
	records map[string]nutrition.Record

	// saveMu orders saves so a later snapshot is never overwritten by an
	// earlier one.
	saveMu sync.Mutex
}

// Load reads the cache document from backend.
func Load(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	records, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = make(map[string]nutrition.Record)
	}
	logger.Info("nutrition cache loaded", "entries", len(records))
	return &Store{backend: backend, logger: logger, records: records}, nil
}

// LoadOrEmpty is Load with a fail-open policy: a load error is logged and an
// empty store bound to the same backend is returned instead.
func LoadOrEmpty(ctx context.Context, backend Backend, logger *slog.Logger) *Store {
	s, err := Load(ctx, backend, logger)
	if err != nil {
		logger.Error("nutrition cache load failed, starting empty", "error", err)
		return &Store{backend: backend, logger: logger, records: make(map[string]nutrition.Record)}
	}
	return s
}

// Get returns the record cached for code.
func (s *Store) Get(code string) (nutrition.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[code]
	return rec, ok
}

// Put inserts rec under code and persists the whole store. Persistence
// failures are logged and do not undo the in-memory insert.
func (s *Store) Put(ctx context.Context, code string, rec nutrition.Record) error {
	if code == "" || rec.IsZero() {
		return fmt.Errorf("%w: barcode %q", ErrInvalidEntry, code)
	}

	s.mu.Lock()
	s.records[code] = rec
	s.mu.Unlock()

	s.Save(ctx)
	return nil
}

// Save persists the store, logging instead of returning any error.
func (s *Store) Save(ctx context.Context) {
	if err := s.SaveErr(ctx); err != nil {
		s.logger.Error("nutrition cache save failed", "error", err)
		return
	}
	s.logger.Info("nutrition cache saved", "entries", s.Len())
}

// SaveErr persists the store and reports the backend error.
func (s *Store) SaveErr(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snapshot := maps.Clone(s.records)
	s.mu.RUnlock()

	return s.backend.Save(ctx, snapshot)
}

// Len returns the number of cached barcodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns every cached record ordered by barcode.
func (s *Store) Records() []nutrition.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := slices.Sorted(maps.Keys(s.records))
	out := make([]nutrition.Record, 0, len(codes))
	for _, code := range codes {
		out = append(out, s.records[code])
	}
	return out
}
