package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/metagen/errors"
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("cache is closed")

// Entry is one cached translation.
type Entry struct {
	ID      string
	Key     string
	Target  string
	Program string
	Output  string
	// Dependencies is the JSON encoding of the translation's dependency sets
	Dependencies string
	CreatedAt    time.Time
	Hits         int
}

// Stats summarises the cache contents.
type Stats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
}

// Store reads and writes cached translations.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, log: log}
}

// OpenStore opens (creating if needed) the cache database at path.
func OpenStore(path string, log *zap.SugaredLogger) (*Store, error) {
	db, err := OpenWithMigrations(path, log)
	if err != nil {
		return nil, err
	}
	return NewStore(db, log), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives a cache key from the inputs of a translation. Parts are length
// prefixed so that ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry stored under key and records the hit. A missing
// entry returns an error marked errors.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	e := &Entry{Key: key}
	var deps sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, target, program, output, dependencies, created_at, hits
		 FROM translations WHERE key = ?`,
		key,
	).Scan(&e.ID, &e.Target, &e.Program, &e.Output, &deps, &e.CreatedAt, &e.Hits)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "cache entry %s", short(key))
	}
	if err != nil {
		return nil, s.wrap(err, "read cache entry")
	}
	e.Dependencies = deps.String

	if _, err := s.db.ExecContext(ctx,
		"UPDATE translations SET hits = hits + 1, last_hit_at = ? WHERE key = ?",
		time.Now(), key,
	); err != nil {
		return nil, s.wrap(err, "record cache hit")
	}
	e.Hits++

	s.log.Debugw("Cache hit", "cache_key", short(key), "target", e.Target, "program", e.Program)
	return e, nil
}

// Put stores e under e.Key, replacing any previous entry. ID and CreatedAt
// are assigned when empty.
func (s *Store) Put(ctx context.Context, e *Entry) error {
	if e.Key == "" {
		return errors.Wrap(errors.ErrInvalidInput, "cache entry without key")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translations (key, id, target, program, output, dependencies, created_at, hits)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		e.Key, e.ID, e.Target, e.Program, e.Output, e.Dependencies, e.CreatedAt,
	)
	if err != nil {
		return s.wrap(err, "write cache entry")
	}
	return nil
}

// Stats counts entries and recorded hits.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM translations",
	).Scan(&st.Entries, &st.Hits)
	if err != nil {
		return Stats{}, s.wrap(err, "read cache stats")
	}
	return st, nil
}

// Prune deletes entries created before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM translations WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, s.wrap(err, "prune cache")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.wrap(err, "prune cache")
	}
	return n, nil
}

func (s *Store) wrap(err error, msg string) error {
	if IsClosed(err) {
		return errors.Wrap(errors.Mark(err, ErrClosed), msg)
	}
	return errors.Wrap(err, msg)
}

// IsClosed reports whether err means the database connection is closed.
// The driver's own errors are matched by message.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
