package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore keeps the full record list in one JSON array file, rewritten
// wholesale on every mutation. A missing or corrupt file reads as empty so a
// filesystem incident never blocks the user.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &JSONStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.read()
	recs = append(recs, rec)
	return s.write(recs)
}

func (s *JSONStore) All() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(), nil
}

func (s *JSONStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(nil)
}

func (s *JSONStore) read() []Record {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil
	}
	return recs
}

func (s *JSONStore) write(recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}
