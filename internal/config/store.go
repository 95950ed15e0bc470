package config

import (
	"log"
	"sync"
)

// Store owns the single authoritative config copy. Readers take an immutable
// snapshot at the start of an event and keep it for the event's lifetime, so
// behavior stays stable even if a reload lands mid-pipeline.
type Store struct {
	mu          sync.RWMutex
	current     *Config
	path        string
	secretsPath string
}

// NewStore loads the initial config. A load failure here is fatal to the
// caller; reload failures later keep the previous snapshot.
func NewStore(path, secretsPath string) (*Store, error) {
	cfg, err := Load(path, secretsPath)
	if err != nil {
		return nil, err
	}
	return &Store{current: cfg, path: path, secretsPath: secretsPath}, nil
}

// Snapshot returns the current immutable config. Callers must not mutate it.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the config file. On any error the previous snapshot stays
// active. Masked secrets in the new document keep their live values.
func (s *Store) Reload() error {
	next, err := Load(s.path, s.secretsPath)
	if err != nil {
		log.Printf("[WARN] Config: reload failed, keeping previous snapshot: %v", err)
		return err
	}

	s.mu.Lock()
	MergeSecrets(next, s.current)
	s.current = next
	s.mu.Unlock()

	log.Printf("[INFO] Config: reloaded from %s", s.path)
	return nil
}

// Path returns the watched config file path.
func (s *Store) Path() string {
	return s.path
}
