package schema

import "sync"

// Store is the per-session holder of a Schema. HTTP handlers of one session
// may run concurrently, so every access goes through the mutex.
type Store struct {
	mu     sync.RWMutex
	schema *Schema
}

func NewStore() *Store {
	return &Store{schema: New()}
}

func (s *Store) AddTable(name, columns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema.AddTable(name, columns)
}

// Import replaces the whole store with the decoded document. On a ParseError
// the previous contents are kept.
func (s *Store) Import(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	s.Replace(parsed)
	return nil
}

func (s *Store) Replace(next *Schema) {
	if next == nil {
		next = New()
	}
	s.mu.Lock()
	s.schema = next.Clone()
	s.mu.Unlock()
}

func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.Export()
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.schema = New()
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.Len()
}

// Snapshot returns an independent copy safe to hand to the prompt builder.
func (s *Store) Snapshot() *Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.Clone()
}
