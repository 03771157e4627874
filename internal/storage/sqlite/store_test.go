package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/shortlink-console/internal/metrics"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "state", "state.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, dbPath
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	store, dbPath := setupTestStore(t)
	assert.Equal(t, dbPath, store.Path())

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	first, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(dbPath)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_GetSet(t *testing.T) {
	store, _ := setupTestStore(t)

	_, ok := store.Get("token")
	assert.False(t, ok)

	store.Set("token", "abc")
	value, ok := store.Get("token")
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	store.Set("token", "def")
	value, ok = store.Get("token")
	assert.True(t, ok)
	assert.Equal(t, "def", value)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	store.SetMany(map[string]string{"token": "abc", "email": "u@e.com", "user_id": "7"})
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	for key, want := range map[string]string{"token": "abc", "email": "u@e.com", "user_id": "7"} {
		value, ok := reopened.Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, value, key)
	}
}

func TestStore_ClosedBehavesAsUnavailable(t *testing.T) {
	store, _ := setupTestStore(t)
	store.Set("token", "abc")
	require.NoError(t, store.Close())

	_, ok := store.Get("token")
	assert.False(t, ok)

	assert.NotPanics(t, func() { store.Set("token", "def") })
	assert.NoError(t, store.Close())
}

func TestStore_ErrorsAreSwallowedAndCounted(t *testing.T) {
	m := metrics.New()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(dbPath, WithMetrics(m))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec("DROP TABLE kv")
	require.NoError(t, err)

	_, ok := store.Get("token")
	assert.False(t, ok)
	store.Set("token", "abc")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StorageErrors.WithLabelValues("get")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StorageErrors.WithLabelValues("set")))
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create_kv_table", migrations[0].Name)
}
