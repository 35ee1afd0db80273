// Package settings is the key-value store the engine reads user preferences from.
// The engine only ever reads; writes come from the CLI or an embedding application.
package settings

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cornelk/hashmap"
	"gopkg.in/yaml.v3"
)

// Keys understood by Resolve.
const (
	KeyTargetPlatform  = "targetPlatform"
	KeyUserEmail       = "userEmail"
	KeyGyroSensitivity = "gyroSensitivity"
	KeyInvertX         = "invertX"
	KeyInvertY         = "invertY"
)

// Store is a read-only view of user settings.
type Store interface {
	Get(key string) (any, bool)
}

// MemoryStore is a concurrency-safe Store.
type MemoryStore struct {
	values *hashmap.Map[string, any]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: hashmap.New[string, any]()}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (any, bool) {
	return s.values.Get(key)
}

// Set stores value under key, replacing any previous value.
func (s *MemoryStore) Set(key string, value any) {
	s.values.Set(key, value)
}

// Keys returns all keys in sorted order.
func (s *MemoryStore) Keys() []string {
	keys := make([]string, 0, s.values.Len())
	s.values.Range(func(k string, _ any) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Load merges a YAML mapping from r into the store.
func (s *MemoryStore) Load(r io.Reader) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode settings: %w", err)
	}
	for k, v := range doc {
		s.Set(k, v)
	}
	return nil
}

// LoadFile reads a YAML settings file into a new store.
func LoadFile(path string) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings file: %w", err)
	}
	defer f.Close()

	store := NewMemoryStore()
	if err := store.Load(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}
