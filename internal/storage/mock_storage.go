package storage

import (
	"sync"

	"github.com/eddiefleurent/schrute_bucks/internal/ledger"
)

// MockStorage implements Interface for testing.
type MockStorage struct {
	mu        sync.Mutex
	snapshot  ledger.Snapshot
	hasState  bool
	saveErr   error
	saveCalls int
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// SetSaveError makes every subsequent SaveSnapshot fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Seed primes the store with a snapshot as if it had been saved.
func (m *MockStorage) Seed(snap ledger.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
	m.hasState = true
}

// SaveCalls returns how many times SaveSnapshot was invoked.
func (m *MockStorage) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// Latest returns the most recently saved snapshot.
func (m *MockStorage) Latest() ledger.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// SaveSnapshot implements Interface.
func (m *MockStorage) SaveSnapshot(snap ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshot = snap
	m.hasState = true
	return nil
}

// LoadSnapshot implements Interface.
func (m *MockStorage) LoadSnapshot() (ledger.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasState {
		return ledger.Snapshot{}, ErrNoState
	}
	return m.snapshot, nil
}

// Ensure MockStorage implements Interface.
var _ Interface = (*MockStorage)(nil)
