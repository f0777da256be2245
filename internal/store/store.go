// Package store keeps raw analyzer reports keyed by (repository, commit).
//
// The presence of a report is the idempotence marker for the commit run
// driver, so Put must never leave a partial artifact behind.
package store

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no report exists for the key.
var ErrNotFound = errors.New("report not found")

// ArtifactStore is a keyed get/put/exists interface over raw reports.
type ArtifactStore interface {
	Exists(repo, commit string) (bool, error)
	Get(repo, commit string) ([]byte, error)
	Put(repo, commit string, data []byte) error
	// List returns the commit ids that have a report, in discovery order.
	List(repo string) ([]string, error)
}

// MemoryStore is an in-process ArtifactStore.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]map[string][]byte
	order   map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]map[string][]byte),
		order:   make(map[string][]string),
	}
}

func (m *MemoryStore) Exists(repo, commit string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reports[repo][commit]
	return ok, nil
}

func (m *MemoryStore) Get(repo, commit string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.reports[repo][commit]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Put(repo, commit string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports[repo] == nil {
		m.reports[repo] = make(map[string][]byte)
	}
	if _, ok := m.reports[repo][commit]; !ok {
		m.order[repo] = append(m.order[repo], commit)
	}
	m.reports[repo][commit] = append([]byte(nil), data...)
	return nil
}

// List returns commits in insertion order.
func (m *MemoryStore) List(repo string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order[repo]...), nil
}
