// Package dotenv persists configuration values into a .env file.
package dotenv

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/ObiAU/sieratagger/internal/models"
)

var _ models.TokenStore = (*Store)(nil)

// Store rewrites a dotenv file on every SetConfigValue. Existing keys are
// kept; comments and ordering are not.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) SetConfigValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", s.path, err)
		}
		values = make(map[string]string)
	}

	values[key] = value
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Path() string {
	return s.path
}
