package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Myriagram/nvm/internal/core"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS contract_storage (
	scope TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (scope, key)
)`

// SQLStorage is a SQLite database holding the stores of many scopes, one
// scope per contract address plus the global scope.
type SQLStorage struct {
	db *sql.DB
}

// OpenSQL opens (or creates) the database file at path.
func OpenSQL(path string) (*SQLStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening storage database %q: %w", path, err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return newSQLStorage(db)
}

// OpenSQLMemory opens a private in-memory database.
func OpenSQLMemory() (*SQLStorage, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory storage database: %w", err)
	}
	// Every pooled connection would get its own :memory: database.
	db.SetMaxOpenConns(1)
	return newSQLStorage(db)
}

func newSQLStorage(db *sql.DB) (*SQLStorage, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating storage schema: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Scope returns the store of one scope.
func (s *SQLStorage) Scope(name string) *SQLScope {
	return &SQLScope{db: s.db, scope: name}
}

// SQLScope is a core.Storage view of one scope.
type SQLScope struct {
	db    *sql.DB
	scope string
}

var _ core.Storage = (*SQLScope)(nil)

func (s *SQLScope) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM contract_storage WHERE scope = ? AND key = ?`, s.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLScope) Put(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO contract_storage (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value`, s.scope, key, value)
	if err != nil {
		return fmt.Errorf("storage put %q: %w", key, err)
	}
	return nil
}

func (s *SQLScope) Del(key string) error {
	if _, err := s.db.Exec(`DELETE FROM contract_storage WHERE scope = ? AND key = ?`, s.scope, key); err != nil {
		return fmt.Errorf("storage del %q: %w", key, err)
	}
	return nil
}
