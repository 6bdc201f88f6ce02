package content

import (
	"database/sql"
	"errors"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// Store is an interface for the content served by the demo application.
// It stores and retrieves string values by key.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns the value stored under key.
	// It also returns a boolean indicating whether the key exists.
	Get(key string) (string, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(key, value string) error
}

type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

const memoryFilename = "file::memory:?cache=shared"

// NewSQLiteStore creates a new store with the given filename as the db.
// If file name is empty or "memory", a shared in-memory db is opened.
func NewSQLiteStore(filename string) (SQLiteStore, error) {
	if filename == "" || filename == "memory" {
		filename = memoryFilename
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteStore{}, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS content (
		key TEXT PRIMARY KEY,
		value TEXT
	)`)
	if err != nil {
		db.Close()
		return SQLiteStore{}, err
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM content WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s SQLiteStore) Put(key, value string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR REPLACE INTO content (key, value) VALUES (?, ?)", key, value)
	return err
}

// Close closes the underlying db.
func (s SQLiteStore) Close() error {
	return s.db.Close()
}
