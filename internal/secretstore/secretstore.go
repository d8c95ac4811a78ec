// Package secretstore implements the process-wide, single-writer/many-reader
// map of named secrets the bootstrap protocol populates and every
// application handler reads from thereafter.
package secretstore

import (
	"fmt"
	"sync"

	"github.com/nautilus-tee/enclave-signer/internal/errs"
)

// Store holds secrets written exactly once by the bootstrap phase and read
// any number of times afterwards. The zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{secrets: make(map[string][]byte)}
}

// Write installs value under name. It fails if name was already written;
// secrets are write-once, matching the bootstrap protocol's guarantee that
// a given name is only ever populated by a single successful load.
func (s *Store) Write(name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.secrets[name]; exists {
		return fmt.Errorf("%w: secret %q already written", errs.BadRequest, name)
	}
	if s.secrets == nil {
		s.secrets = make(map[string][]byte)
	}
	s.secrets[name] = value
	return nil
}

// Read returns the bytes written under name. It fails with
// SecretNotInitialized if name hasn't been written yet.
func (s *Store) Read(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.secrets[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", errs.SecretNotInitialized, name)
	}
	return v, nil
}

// Has reports whether name has been written, without erroring.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.secrets[name]
	return exists
}
