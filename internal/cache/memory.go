package cache

import (
	"context"
	"maps"
	"sync"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// MemoryBackend keeps the document in process memory. Saves counts the
// number of Save calls.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]nutrition.Record
	Saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryBackend returns a backend pre-seeded with records.
func NewMemoryBackend(records map[string]nutrition.Record) *MemoryBackend {
	return &MemoryBackend{records: maps.Clone(records)}
}

func (m *MemoryBackend) Load(_ context.Context) (map[string]nutrition.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := maps.Clone(m.records)
	if out == nil {
		out = make(map[string]nutrition.Record)
	}
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, records map[string]nutrition.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.records = maps.Clone(records)
	return nil
}

// Snapshot returns a copy of the last saved document.
func (m *MemoryBackend) Snapshot() map[string]nutrition.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.records)
}
