package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/deemkeen/formgate/domain"
	_ "modernc.org/sqlite"
)

const (
	sqlCreateCredentialTable = `CREATE TABLE IF NOT EXISTS credential (hash TEXT NOT NULL)`
	sqlCreateAttemptsTable   = `CREATE TABLE IF NOT EXISTS attempts (
		address TEXT PRIMARY KEY,
		count   INTEGER NOT NULL
	)`

	sqlSelectHash     = `SELECT hash FROM credential LIMIT 1`
	sqlSelectAttempts = `SELECT address, count FROM attempts`
	sqlDeleteHash     = `DELETE FROM credential`
	sqlInsertHash     = `INSERT INTO credential (hash) VALUES (?)`
	sqlDeleteAttempts = `DELETE FROM attempts`
	sqlInsertAttempt  = `INSERT INTO attempts (address, count) VALUES (?, ?)`
)

// sqliteBackend keeps the credential record in two tables. A save rewrites
// both inside one transaction, mirroring the whole-file rewrite of the JSON backend.
type sqliteBackend struct {
	path string
	db   *sql.DB
}

// newSQLiteBackend does not create a missing database: a missing file means
// authentication is disabled, same as a missing JSON file.
func newSQLiteBackend(path string) (*sqliteBackend, error) {
	b := &sqliteBackend{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *sqliteBackend) connect() error {
	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.path, err)
	}
	// One writer at a time, matching the store lock
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{sqlCreateCredentialTable, sqlCreateAttemptsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("prepare schema in %s: %w", b.path, err)
		}
	}
	b.db = db
	return nil
}

func (b *sqliteBackend) String() string {
	return b.path
}

func (b *sqliteBackend) load() (*domain.CredentialRecord, error) {
	if b.db == nil {
		return nil, ErrNoCredentials
	}

	rec := &domain.CredentialRecord{Attempts: make(map[string]int)}
	err := b.db.QueryRow(sqlSelectHash).Scan(&rec.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}
	if rec.Hash == "" {
		return nil, ErrNoCredentials
	}

	rows, err := b.db.Query(sqlSelectAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var addr string
		var count int
		if err := rows.Scan(&addr, &count); err != nil {
			return nil, err
		}
		rec.Attempts[addr] = count
	}
	return rec, rows.Err()
}

func (b *sqliteBackend) save(rec *domain.CredentialRecord) error {
	if b.db == nil {
		// First write from the admin CLI creates the database
		if err := b.connect(); err != nil {
			return err
		}
	}

	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sqlDeleteHash); err != nil {
		return err
	}
	if _, err := tx.Exec(sqlInsertHash, rec.Hash); err != nil {
		return err
	}
	if _, err := tx.Exec(sqlDeleteAttempts); err != nil {
		return err
	}
	for addr, count := range rec.Attempts {
		if _, err := tx.Exec(sqlInsertAttempt, addr, count); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (b *sqliteBackend) close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
