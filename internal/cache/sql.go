package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const sqliteFileName = "result_cache.db"

type sqlDialect struct {
	driver string
	schema []string
	upsert string
}

var sqliteDialect = sqlDialect{
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS result_cache (
			cache_key  TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_cache_expires_at ON result_cache(expires_at)`,
	},
	upsert: `INSERT OR REPLACE INTO result_cache (cache_key, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
}

var mysqlDialect = sqlDialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS result_cache (
			cache_key  VARCHAR(128) PRIMARY KEY,
			payload    BLOB NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			INDEX idx_result_cache_expires_at (expires_at)
		)`,
	},
	upsert: `INSERT INTO result_cache (cache_key, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			created_at = VALUES(created_at),
			expires_at = VALUES(expires_at)`,
}

// SQLStore keeps entries in a SQL table. Expired rows are skipped on read
// and swept by a background task when a TTL is configured.
type SQLStore struct {
	db       *sql.DB
	dialect  sqlDialect
	ttl      time.Duration
	location string
	tempDir  string
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	closeErr error
	closed   sync.Once
}

// NewSQLiteStore opens (or creates) the cache database under dir.
// An empty dir creates a fresh temporary directory that is removed on Close,
// so entries never outlive the process.
func NewSQLiteStore(dir string, ttl time.Duration, logger *zap.Logger) (*SQLStore, error) {
	var tempDir string
	if dir == "" {
		d, err := os.MkdirTemp("", "spamcheck-cache-")
		if err != nil {
			return nil, fmt.Errorf("create temporary cache directory: %w", err)
		}
		dir, tempDir = d, d
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open(sqliteDialect.driver, filepath.Join(dir, sqliteFileName))
	if err != nil {
		removeTemp(tempDir)
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time avoids "database is locked" under concurrent requests.
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(db, sqliteDialect, ttl, dir, logger)
	if err != nil {
		removeTemp(tempDir)
		return nil, err
	}
	s.tempDir = tempDir
	return s, nil
}

// NewMySQLStore connects to MySQL using dsn and ensures the table exists.
func NewMySQLStore(dsn string, ttl time.Duration, logger *zap.Logger) (*SQLStore, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}

	db, err := sql.Open(mysqlDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to mysql database: %w", err)
	}

	location := fmt.Sprintf("mysql://%s/%s", parsed.Addr, parsed.DBName)
	return newSQLStore(db, mysqlDialect, ttl, location, logger)
}

func newSQLStore(db *sql.DB, d sqlDialect, ttl time.Duration, location string, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s schema: %w", d.driver, err)
		}
	}

	s := &SQLStore{
		db:       db,
		dialect:  d,
		ttl:      ttl,
		location: location,
		logger:   logger.Named("cache." + d.driver),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if ttl > 0 {
		go s.startCleanupTask(cleanupInterval(ttl))
	} else {
		close(s.doneCh)
	}

	return s, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM result_cache
		WHERE cache_key = ? AND (expires_at = 0 OR expires_at > ?)
	`, key, time.Now().Unix()).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s get: %v", ErrUnavailable, s.dialect.driver, err)
	}
	return payload, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now()
	var expiresAt int64
	if s.ttl > 0 {
		expiresAt = now.Add(s.ttl).Unix()
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value, now.Unix(), expiresAt); err != nil {
		return fmt.Errorf("%w: %s set: %v", ErrUnavailable, s.dialect.driver, err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM result_cache`); err != nil {
		return fmt.Errorf("%w: %s clear: %v", ErrUnavailable, s.dialect.driver, err)
	}
	return nil
}

func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM result_cache
		WHERE expires_at = 0 OR expires_at > ?
	`, time.Now().Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %s count: %v", ErrUnavailable, s.dialect.driver, err)
	}
	return n, nil
}

func (s *SQLStore) Location() string {
	return s.location
}

// Cleanup removes expired rows.
func (s *SQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM result_cache
		WHERE expires_at > 0 AND expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("clean up expired entries: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil {
		s.logger.Debug("cleaned up expired cache entries", zap.Int64("expired_count", n))
	}
	return nil
}

// startCleanupTask sweeps expired rows until Close.
func (s *SQLStore) startCleanupTask(every time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("cache cleanup failed", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %s ping: %v", ErrUnavailable, s.dialect.driver, err)
	}
	return nil
}

// Close stops the sweeper, closes the database and removes a temporary
// directory created by NewSQLiteStore.
func (s *SQLStore) Close() error {
	s.closed.Do(func() {
		close(s.stopCh)
		<-s.doneCh

		s.closeErr = s.db.Close()
		removeTemp(s.tempDir)
	})
	return s.closeErr
}

func cleanupInterval(ttl time.Duration) time.Duration {
	every := ttl / 2
	if every < time.Second {
		every = time.Second
	}
	if every > time.Hour {
		every = time.Hour
	}
	return every
}

func removeTemp(dir string) {
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}
