package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Well-known keys. The bookmark store and sync client agree on these.
const (
	KeyBookmarks       = "bookmarks"
	KeyGroups          = "groups"
	KeySyncProvider    = "syncProvider"
	KeyAutoSyncEnabled = "autoSyncEnabled"
	KeyLastSyncTime    = "lastSyncTime"
)

// TokenKey returns the storage key holding the access token for a provider.
func TokenKey(provider string) string {
	return provider + "SyncToken"
}

// Change describes a single write.
type Change struct {
	Key string
}

// Store is a file-backed key-value store with change notifications.
type Store struct {
	dir   string
	cache sync.Map

	mu   sync.Mutex // serializes writes
	subs []chan Change
	subM sync.RWMutex
}

// Open creates the data directory if needed and returns a store over it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Set serializes value as JSON, persists it, updates the cache, and
// broadcasts the change.
func (s *Store) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}

	s.mu.Lock()
	err = s.writeFile(key, data)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.cache.Store(key, data)
	s.broadcast(Change{Key: key})
	return nil
}

// Get loads the value for key into out. Returns ErrNotFound when the key has
// never been written.
func (s *Store) Get(key string, out interface{}) error {
	if cached, ok := s.cache.Load(key); ok {
		return json.Unmarshal(cached.([]byte), out)
	}

	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	s.cache.Store(key, data)
	return json.Unmarshal(data, out)
}

// GetString is a convenience for string-valued keys; missing keys yield "".
func (s *Store) GetString(key string) string {
	var v string
	if err := s.Get(key, &v); err != nil {
		return ""
	}
	return v
}

// GetBool is a convenience for bool-valued keys; missing keys yield false.
func (s *Store) GetBool(key string) bool {
	var v bool
	if err := s.Get(key, &v); err != nil {
		return false
	}
	return v
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	err := os.Remove(s.keyPath(key))
	s.mu.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	s.cache.Delete(key)
	s.broadcast(Change{Key: key})
	return nil
}

// Keys lists all persisted keys.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	return keys, nil
}

// Subscribe returns a channel receiving a Change after every write. The
// channel is buffered; slow consumers drop events rather than block writers.
func (s *Store) Subscribe() <-chan Change {
	ch := make(chan Change, 64)
	s.subM.Lock()
	s.subs = append(s.subs, ch)
	s.subM.Unlock()
	return ch
}

func (s *Store) broadcast(c Change) {
	s.subM.RLock()
	defer s.subM.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// writeFile writes atomically via a temp file so a crash mid-write never
// corrupts the last good value.
func (s *Store) writeFile(key string, data []byte) error {
	path := s.keyPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}
