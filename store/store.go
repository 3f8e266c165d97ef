// Package store is the SQLite persistence layer for people, plans and local
// accounts.
//
// A single Store implements people.Store, plans.Store and auth.Credentials.
// Records are scoped by user id. Watch delivers name-ordered snapshots of a
// user's people after every write, emulating a real-time document listener.
//
// SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	anonymous     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	user_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	user_id      TEXT NOT NULL,
	key          TEXT NOT NULL,
	name         TEXT NOT NULL,
	nickname     TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	birthday     TEXT NOT NULL DEFAULT '',
	relationship TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (user_id, key)
);

CREATE INDEX IF NOT EXISTS contacts_by_name ON contacts (user_id, name);

CREATE TABLE IF NOT EXISTS plans (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	contact_key      TEXT NOT NULL,
	starts_at        INTEGER NOT NULL,
	duration_minutes INTEGER NOT NULL,
	location         TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	FOREIGN KEY (user_id, contact_key) REFERENCES contacts (user_id, key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS plans_by_start ON plans (user_id, starts_at);
`

// Store is a SQLite-backed store. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open opens or creates the database at path and applies the schema. Use
// MemoryPath for a throwaway database.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{log: zap.NewNop(), watchers: map[string]map[*watcher]struct{}{}}
	for _, opt := range opts {
		opt(s)
	}

	dsn := "file::memory:?_foreign_keys=on"
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: creating database directory failed: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", strings.ReplaceAll(path, " ", "%20"))
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite database failed: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to sqlite database failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema failed: %w", err)
	}
	s.db = db
	s.log.Debug("opened store", zap.String("path", path))
	return s, nil
}

// Close closes the database. Open watches stay open until their contexts end.
func (s *Store) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == code
	}
	return false
}
