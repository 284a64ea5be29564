package db

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/deemkeen/formgate/domain"
	"github.com/deemkeen/formgate/util"
)

// jsonBackend keeps the credential record in a single JSON file:
// {"hash": "...", "attempts": {"1.2.3.4": 2}}
type jsonBackend struct {
	path string
}

func (b *jsonBackend) String() string {
	return b.path
}

func (b *jsonBackend) load() (*domain.CredentialRecord, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.Hash == "" {
		return nil, ErrNoCredentials
	}
	return rec, nil
}

func (b *jsonBackend) save(rec *domain.CredentialRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(b.path, data, 0o600)
}

func (b *jsonBackend) close() error {
	return nil
}

func encodeRecord(rec *domain.CredentialRecord) ([]byte, error) {
	out := rec
	if out.Attempts == nil {
		out = &domain.CredentialRecord{Hash: rec.Hash, Attempts: map[string]int{}}
	}
	return sonic.ConfigStd.Marshal(out)
}

func decodeRecord(data []byte) (*domain.CredentialRecord, error) {
	if len(data) == 0 {
		return nil, ErrNoCredentials
	}
	var rec domain.CredentialRecord
	if err := sonic.ConfigStd.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode credential record: %w", err)
	}
	return &rec, nil
}
