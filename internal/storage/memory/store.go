package memory

import (
	"sync"

	"github.com/joshdurbin/shortlink-console/internal/storage"
)

// Store implements storage.Store in process memory. State does not
// survive a restart; it backs tests and the fallback when the durable
// store cannot be opened.
type Store struct {
	data  map[string]string
	mutex sync.RWMutex
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		data: make(map[string]string),
	}
}

// NewWithData creates a store seeded with a copy of data
func NewWithData(data map[string]string) *Store {
	s := New()
	for k, v := range data {
		s.data[k] = v
	}
	return s
}

// Get retrieves the value stored under key
func (s *Store) Get(key string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	return value, exists
}

// Set stores value under key
func (s *Store) Set(key, value string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[key] = value
}

// SetMany stores all pairs under a single lock
func (s *Store) SetMany(values map[string]string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for k, v := range values {
		s.data[k] = v
	}
}

// Snapshot returns a copy of the stored data
func (s *Store) Snapshot() map[string]string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
