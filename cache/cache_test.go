package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/metagen/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "cache.db"), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
}

func TestOpenInvalidPath(t *testing.T) {
	db, err := Open("/invalid/nonexistent/path/cache.db", nil)
	if err == nil && db != nil {
		err = db.Ping()
		db.Close()
	}
	require.Error(t, err)
	assert.NotNil(t, errors.GetStack(err))
}

func TestMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, nil))
	require.NoError(t, Migrate(db, nil), "running migrations twice should be safe")

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 2, versions)

	var tables int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='translations'").Scan(&tables))
	assert.Equal(t, 1, tables)
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := Key([]byte("python"), []byte(`{"Program": []}`))

	_, err := s.Get(ctx, key)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	e := &Entry{
		Key:          key,
		Target:       "python",
		Program:      "knn",
		Output:       "knn = KNN()\n",
		Dependencies: `{"all_classes":["KNN"]}`,
	}
	require.NoError(t, s.Put(ctx, e))
	assert.NotEmpty(t, e.ID)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "knn = KNN()\n", got.Output)
	assert.Equal(t, `{"all_classes":["KNN"]}`, got.Dependencies)
	assert.Equal(t, 1, got.Hits)

	_, err = s.Get(ctx, key)
	require.NoError(t, err)
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Entries: 1, Hits: 2}, st)

	// replacing resets the hit count
	e.ID = ""
	e.Output = "knn = KNN(3)\n"
	require.NoError(t, s.Put(ctx, e))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "knn = KNN(3)\n", got.Output)
	assert.Equal(t, 1, got.Hits)
}

func TestStorePrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(ctx, &Entry{Key: fmt.Sprintf("old-%d", i), Target: "cpp", Program: "p", CreatedAt: old}))
	}
	require.NoError(t, s.Put(ctx, &Entry{Key: "fresh", Target: "cpp", Program: "p"}))

	n, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Entries)
}

func TestPutRequiresKey(t *testing.T) {
	s := openTestStore(t)
	err := s.Put(context.Background(), &Entry{Target: "python"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInputError(err))
}

func TestKey(t *testing.T) {
	a := Key([]byte("ab"), []byte("c"))
	b := Key([]byte("a"), []byte("bc"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Key([]byte("ab"), []byte("c")))
	assert.Len(t, a, 64)
}

// sqlmock covers the driver failure paths

var entryColumns = []string{"id", "target", "program", "output", "dependencies", "created_at", "hits"}

func TestGet_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewStore(db, nil)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, target, program, output, dependencies, created_at, hits`).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows(entryColumns).AddRow("id-1", "java", "knn", "out", nil, now, 4))
	mock.ExpectExec(`UPDATE translations SET hits = hits \+ 1`).
		WithArgs(sqlmock.AnyArg(), "k1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	e, err := s.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "java", e.Target)
	assert.Equal(t, "", e.Dependencies)
	assert.Equal(t, 5, e.Hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewStore(db, nil)

	mock.ExpectQuery(`SELECT id, target`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(entryColumns))

	_, err = s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetClosed_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewStore(db, nil)

	mock.ExpectQuery(`SELECT id, target`).WillReturnError(errors.New("sql: database is closed"))

	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, IsClosed(err))
}

func TestPut_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewStore(db, nil)

	e := &Entry{Key: "k", Target: "octave", Program: "svm", Output: "disp(1);\n", Dependencies: "{}"}
	mock.ExpectExec(`INSERT OR REPLACE INTO translations`).
		WithArgs("k", sqlmock.AnyArg(), "octave", "svm", "disp(1);\n", "{}", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	err = s.Put(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write cache entry")
	assert.False(t, IsClosed(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
