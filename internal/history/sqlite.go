package history

// SQLite-backed persistence for the serialized history.
// The database is opened lazily and created on first use.
// If opening the DB fails, the backend falls back to in-memory storage for
// the rest of the process.

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/geminichat/internal/logger"
)

const historyKey = "chatHistory"

// SQLitePersistence keeps the payload in a single-row key/value table.
type SQLitePersistence struct {
	path string

	dbOnce  sync.Once
	db      *sql.DB
	initErr error

	fallback MemoryPersistence
}

// NewSQLitePersistence returns a backend for the database file at path.
func NewSQLitePersistence(path string) *SQLitePersistence {
	if path == "" {
		path = "history.db"
	}
	return &SQLitePersistence{path: path}
}

// initDB opens the SQLite database and creates the kv table if it doesn't exist.
func (p *SQLitePersistence) initDB() {
	db, err := sql.Open("sqlite", "file:"+p.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		p.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err, "path", p.path)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at DATETIME
    );`); err != nil {
		db.Close()
		p.initErr = err
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err, "path", p.path)
		return
	}
	p.db = db
	logger.L.Info("sqlite history DB initialized", "path", p.path)
}

func (p *SQLitePersistence) ready() bool {
	p.dbOnce.Do(p.initDB)
	return p.initErr == nil && p.db != nil
}

// Save overwrites the stored payload.
func (p *SQLitePersistence) Save(serialized string) error {
	if !p.ready() {
		return p.fallback.Save(serialized)
	}
	_, err := p.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?,?,?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		historyKey, serialized, time.Now().UTC())
	return err
}

// Load returns the stored payload, if any.
func (p *SQLitePersistence) Load() (string, bool, error) {
	if !p.ready() {
		return p.fallback.Load()
	}
	var value string
	err := p.db.QueryRow(`SELECT value FROM kv WHERE key = ?;`, historyKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Close releases the database handle.
func (p *SQLitePersistence) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
