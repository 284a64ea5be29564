package db

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/deemkeen/formgate/domain"
)

// ErrNoCredentials means the credential resource is missing or carries no hash.
// Opening a store in that state is not an error: the store is disabled instead.
var ErrNoCredentials = errors.New("no credential record")

// backend persists a whole credential record. Implementations are only ever
// called with the BanStore write lock held, so they need no locking of their own.
type backend interface {
	load() (*domain.CredentialRecord, error)
	save(rec *domain.CredentialRecord) error
	close() error
	String() string
}

// BanStore owns the credential record: the secret hash and the failed-attempt
// counters. Every mutation rewrites the durable copy before it returns and is
// serialized with all other mutations.
//
// ResetAll and SetSecret are administrative and must not run concurrently with
// request traffic.
type BanStore struct {
	mu       sync.RWMutex
	rec      *domain.CredentialRecord
	disabled bool
	backend  backend
}

// Open loads the JSON credential file at path
func Open(path string) (*BanStore, error) {
	return open(&jsonBackend{path: path})
}

// OpenSQLite loads the credential record from the SQLite database at path
func OpenSQLite(path string) (*BanStore, error) {
	b, err := newSQLiteBackend(path)
	if err != nil {
		return nil, err
	}
	return open(b)
}

func open(b backend) (*BanStore, error) {
	rec, err := b.load()
	if errors.Is(err, ErrNoCredentials) {
		log.Printf("Missing %s. Authentication is disabled.", b)
		return &BanStore{disabled: true, backend: b}, nil
	}
	if err != nil {
		b.close()
		return nil, fmt.Errorf("load %s: %w", b, err)
	}
	if rec.Attempts == nil {
		rec.Attempts = make(map[string]int)
	}
	return &BanStore{rec: rec, backend: b}, nil
}

// Disabled reports whether no credential record was found at load time
func (s *BanStore) Disabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disabled
}

// Hash returns the stored secret hash, empty when disabled
func (s *BanStore) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disabled {
		return ""
	}
	return s.rec.Hash
}

// AttemptsFor returns the failure counter for addr; unknown addresses have 0
func (s *BanStore) AttemptsFor(addr string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disabled {
		return 0
	}
	return s.rec.Attempts[addr]
}

// RecordFailure increments the counter for addr, persists the record and
// returns the new value. A persistence error is returned alongside the new
// value: the in-memory increment stands for the rest of the process lifetime.
func (s *BanStore) RecordFailure(addr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return 0, ErrNoCredentials
	}

	s.rec.Attempts[addr]++
	n := s.rec.Attempts[addr]
	if err := s.backend.save(s.rec); err != nil {
		return n, fmt.Errorf("persist failure for %s: %w", addr, err)
	}
	return n, nil
}

// RecordSuccess forgets every failure of addr and persists the record.
// When limit is positive and addr has reached it, the counter is kept and
// banned is reported instead, so a concurrent failure that completed a ban
// is never undone. Nothing is written when addr had no failures.
func (s *BanStore) RecordSuccess(addr string, limit int) (banned bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return false, nil
	}

	n, ok := s.rec.Attempts[addr]
	if !ok {
		return false, nil
	}
	if limit > 0 && n >= limit {
		return true, nil
	}
	delete(s.rec.Attempts, addr)
	if err := s.backend.save(s.rec); err != nil {
		return false, fmt.Errorf("persist success for %s: %w", addr, err)
	}
	return false, nil
}

// ResetAll clears every counter and returns how many addresses were cleared.
// It fails with ErrNoCredentials when there is no credential record to reset.
func (s *BanStore) ResetAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return 0, fmt.Errorf("reset %s: %w", s.backend, ErrNoCredentials)
	}

	cleared := len(s.rec.Attempts)
	if cleared == 0 {
		return 0, nil
	}
	s.rec.Attempts = make(map[string]int)
	if err := s.backend.save(s.rec); err != nil {
		return cleared, fmt.Errorf("persist reset: %w", err)
	}
	return cleared, nil
}

// SetSecret stores a new secret hash, keeping existing counters. A disabled
// store becomes enabled. This is an offline administrative operation; a running
// server never changes its hash.
func (s *BanStore) SetSecret(hash string) error {
	if hash == "" {
		return errors.New("empty secret hash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		s.rec = &domain.CredentialRecord{Attempts: make(map[string]int)}
	}
	previous := s.rec.Hash
	s.rec.Hash = hash
	if err := s.backend.save(s.rec); err != nil {
		s.rec.Hash = previous
		return fmt.Errorf("persist secret: %w", err)
	}
	s.disabled = false
	return nil
}

// Snapshot returns a copy of the attempts mapping
func (s *BanStore) Snapshot() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disabled {
		return map[string]int{}
	}
	return s.rec.Clone().Attempts
}

// Location names the durable resource backing the store
func (s *BanStore) Location() string {
	return s.backend.String()
}

func (s *BanStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.close()
}
