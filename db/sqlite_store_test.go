package db

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
)

func setupSQLiteStore(t *testing.T) (*BanStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.db")

	// Seed through the admin path so the schema matches production
	seed, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := seed.SetSecret(testHash); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	seed.Close()

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSQLiteStoreMissingDatabase(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "missing.db"))
	if err != nil {
		t.Fatalf("Missing database should not be an error: %v", err)
	}
	defer store.Close()

	if !store.Disabled() {
		t.Error("Expected store to be disabled")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, path := setupSQLiteStore(t)

	if store.Disabled() {
		t.Fatal("Seeded store should be enabled")
	}
	if _, err := store.RecordFailure("10.0.0.1"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if _, err := store.RecordFailure("10.0.0.1"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if _, err := store.RecordFailure("10.0.0.2"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if _, err := store.RecordSuccess("10.0.0.2", 0); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	store.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if n := reopened.AttemptsFor("10.0.0.1"); n != 2 {
		t.Errorf("Expected 2 attempts, got %d", n)
	}
	if n := reopened.AttemptsFor("10.0.0.2"); n != 0 {
		t.Errorf("Expected 0 attempts after success, got %d", n)
	}
	if reopened.Hash() != testHash {
		t.Errorf("Expected hash %s, got %s", testHash, reopened.Hash())
	}
}

func TestSQLiteStoreSchema(t *testing.T) {
	_, path := setupSQLiteStore(t)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM credential`).Scan(&count); err != nil {
		t.Fatalf("Failed to query credential table: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one credential row, got %d", count)
	}
}

func TestSQLiteStoreConcurrentFailures(t *testing.T) {
	store, _ := setupSQLiteStore(t)

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.RecordFailure("192.168.0.9"); err != nil {
				t.Errorf("RecordFailure failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := store.AttemptsFor("192.168.0.9"); n != workers {
		t.Errorf("Expected %d attempts, got %d", workers, n)
	}
}
