// Package database owns the process-wide datastore handle. The handle is opened
// lazily on first use, health-checked on every EnsureReady call and replaced when
// the driver reports it dead.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"ballot-auth/internal/repository"
	"ballot-auth/internal/repository/sqldb"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrConfiguration indicates the datastore cannot be reached because its
// configuration is missing or malformed.
var ErrConfiguration = errors.New("datastore configuration error")

// ErrDescriptorMissing is wrapped into ErrConfiguration when no descriptor was supplied.
var ErrDescriptorMissing = errors.New("datastore descriptor is not configured")

// ConnectionError wraps a failure to open, ping or prepare the datastore.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("datastore connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

type Config struct {
	Descriptor     string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	Logger         logrus.FieldLogger
}

// Manager hands out a ready UserRepository, connecting on demand.
type Manager struct {
	cfg     Config
	open    func(dialect sqldb.Dialect, dsn string) (*sql.DB, error)
	migrate func(ctx context.Context, db *sql.DB, dialect sqldb.Dialect, schema fs.FS) error

	mu     sync.RWMutex
	db     *sql.DB
	users  *sqldb.UserRepository
	schema fs.FS
}

func NewManager(cfg Config) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Manager{
		cfg:     cfg,
		open:    sqldb.Open,
		migrate: runMigrations,
	}
}

// Configured reports whether a datastore descriptor was supplied.
func (m *Manager) Configured() bool {
	return strings.TrimSpace(m.cfg.Descriptor) != ""
}

// EnsureReady returns a repository backed by a live handle. It is safe to call on
// every request: a healthy handle costs one ping, a dead one is discarded and
// reopened, and a failure leaves nothing behind so the next call tries again.
func (m *Manager) EnsureReady(ctx context.Context) (repository.UserRepository, error) {
	m.mu.RLock()
	db, users := m.db, m.users
	m.mu.RUnlock()

	if db != nil && m.ping(ctx, db) == nil {
		return users, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		if m.db != db && m.ping(ctx, m.db) == nil {
			return m.users, nil
		}
		m.cfg.Logger.Warn("datastore handle is no longer alive, reconnecting")
		m.discardLocked()
	}

	return m.connectLocked(ctx)
}

// Close releases the handle. A later EnsureReady reconnects.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.users = nil, nil
	return err
}

func (m *Manager) connectLocked(ctx context.Context) (repository.UserRepository, error) {
	if !m.Configured() {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrDescriptorMissing)
	}

	dialect, dsn, err := sqldb.ParseDescriptor(m.cfg.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	db, err := m.open(dialect, dsn)
	if err != nil {
		m.cfg.Logger.WithError(err).Error("datastore open failed")
		return nil, &ConnectionError{Cause: err}
	}

	if err := m.ping(ctx, db); err != nil {
		_ = db.Close()
		m.cfg.Logger.WithError(err).Error("datastore ping failed")
		return nil, &ConnectionError{Cause: err}
	}

	if err := m.bindSchemaLocked(ctx, db, dialect); err != nil {
		_ = db.Close()
		m.cfg.Logger.WithError(err).Error("datastore schema binding failed")
		return nil, &ConnectionError{Cause: err}
	}

	m.db = db
	m.users = sqldb.NewUserRepository(db, dialect, m.cfg.QueryTimeout)
	fields := logrus.Fields{"dialect": dialect}
	if dialect == sqldb.DialectSQLite {
		fields["path"] = dsn
	}
	m.cfg.Logger.WithFields(fields).Info("datastore connected")
	return m.users, nil
}

// bindSchemaLocked brings a freshly opened handle up to the embedded schema. The
// migration source is resolved once per Manager; every new handle is migrated
// because a reopened store (":memory:", a recreated database) may be empty.
// Applying an up-to-date schema is a no-op.
func (m *Manager) bindSchemaLocked(ctx context.Context, db *sql.DB, dialect sqldb.Dialect) error {
	if m.schema == nil {
		fsys, err := fs.Sub(migrationFS, "migrations")
		if err != nil {
			return fmt.Errorf("migrations fs: %w", err)
		}
		m.schema = fsys
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	return m.migrate(ctx, db, dialect, m.schema)
}

func (m *Manager) discardLocked() {
	if err := m.db.Close(); err != nil {
		m.cfg.Logger.WithError(err).Debug("close stale datastore handle")
	}
	m.db, m.users = nil, nil
}

func (m *Manager) ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

func runMigrations(ctx context.Context, db *sql.DB, dialect sqldb.Dialect, schema fs.FS) error {
	gooseDialect := goose.DialectSQLite3
	if dialect == sqldb.DialectPostgres {
		gooseDialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(gooseDialect, db, schema)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
