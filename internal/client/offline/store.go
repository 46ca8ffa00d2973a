// Package offline queues state-changing requests that could not reach the
// server and replays them once it is reachable again.
package offline

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ErrEntryNotFound is returned when a queue entry no longer exists
var ErrEntryNotFound = errors.New("queue entry not found")

// Entry is a request stored for later replay
type Entry struct {
	ID        int64       `json:"id" yaml:"id"`
	Method    string      `json:"method" yaml:"method"`
	URL       string      `json:"url" yaml:"url"`
	Header    http.Header `json:"header" yaml:"header"`
	Body      []byte      `json:"body" yaml:"-"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
	Attempts  int         `json:"attempts" yaml:"attempts"`
	LastError string      `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// Store persists queue entries. List returns them oldest first.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Update(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// MemoryStore keeps entries for the life of the process
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]Entry
}

// NewMemoryStore creates an empty in-memory queue store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]Entry)}
}

func (s *MemoryStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	entry.Header = entry.Header.Clone()
	entry.Body = append([]byte(nil), entry.Body...)
	s.entries[entry.ID] = entry
	return entry, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *MemoryStore) Update(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return ErrEntryNotFound
	}
	s.entries[entry.ID] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
