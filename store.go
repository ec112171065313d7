package main

import (
	"context"
	"sync"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// ThresholdStore persists each user's nutrient thresholds.
type ThresholdStore interface {
	Get(ctx context.Context, userID string) (th nutrition.Thresholds, found bool, err error)
	Put(ctx context.Context, userID string, th nutrition.Thresholds) error
	Delete(ctx context.Context, userID string) error
}

// memoryThresholdStore keeps thresholds for the lifetime of the process.
type memoryThresholdStore struct {
	mu    sync.RWMutex
	users map[string]nutrition.Thresholds
}

func newMemoryThresholdStore() *memoryThresholdStore {
	return &memoryThresholdStore{users: make(map[string]nutrition.Thresholds)}
}

func (m *memoryThresholdStore) Get(_ context.Context, userID string) (nutrition.Thresholds, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	th, ok := m.users[userID]
	return th, ok, nil
}

func (m *memoryThresholdStore) Put(_ context.Context, userID string, th nutrition.Thresholds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = th
	return nil
}

func (m *memoryThresholdStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}
