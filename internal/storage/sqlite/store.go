package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/logging"
	"github.com/joshdurbin/shortlink-console/internal/metrics"
	"github.com/joshdurbin/shortlink-console/internal/storage"
)

// opTimeout bounds every statement so callers never block indefinitely
const opTimeout = 2 * time.Second

// Store implements storage.Store on a SQLite database file
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for swallowed errors
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics counts swallowed errors in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Open opens (creating if needed) the database at databasePath and applies
// pending migrations
func Open(databasePath string, opts ...Option) (*Store, error) {
	s := &Store{path: databasePath}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)

	if dir := filepath.Dir(databasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 1000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	return s, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Get retrieves the value stored under key. Errors and an unavailable
// database both report the key as absent.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		s.logger.Debug("state store unavailable", zap.String("op", "get"), zap.String("key", key))
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail("get", key, err)
		}
		return "", false
	}

	return value, true
}

// Set stores value under key
func (s *Store) Set(key, value string) {
	s.SetMany(map[string]string{key: value})
}

// SetMany writes all pairs in one transaction
func (s *Store) SetMany(values map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		s.logger.Debug("state store unavailable", zap.String("op", "set"), zap.Int("keys", len(values)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.upsert(ctx, values); err != nil {
		s.fail("set", "", err)
	}
}

func (s *Store) upsert(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return fmt.Errorf("failed to write key %q: %w", key, err)
		}
	}

	return tx.Commit()
}

func (s *Store) fail(op, key string, err error) {
	s.logger.Warn("state store error swallowed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.StorageErrors.WithLabelValues(op).Inc()
	}
}

// Close closes the database; later calls behave as an unavailable medium
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

var _ storage.Store = (*Store)(nil)
