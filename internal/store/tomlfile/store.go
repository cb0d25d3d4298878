// Package tomlfile is a TOML-backed key/value file. It supplies configuration
// defaults and persists renewed access tokens.
package tomlfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/ObiAU/sieratagger/internal/models"
)

// Ensure Store implements the interface.
var _ models.TokenStore = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// Open loads the file at path. A missing file yields an empty store that is
// created on the first Set.
func Open(path string) (*Store, error) {
	s := &Store{
		filePath: path,
		data:     make(map[string]any),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok
}

// GetString returns "" for missing keys and non-string values.
func (s *Store) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// Strings renders every scalar value as a string.
func (s *Store) Strings() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		switch v.(type) {
		case string, int64, int, float64, bool:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// Set stores a value and persists immediately.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.save()
}

func (s *Store) SetConfigValue(key, value string) error {
	return s.Set(key, value)
}

// save writes the file (caller must hold lock).
func (s *Store) save() error {
	data, err := toml.Marshal(s.data)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.filePath, data, 0600)
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]any)
			return nil
		}
		return err
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return err
	}
	if loaded == nil {
		loaded = make(map[string]any)
	}

	s.data = flattenMap(loaded, "")
	return nil
}

// flattenMap converts nested tables to dot-notation keys.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}

func (s *Store) Path() string {
	return s.filePath
}
