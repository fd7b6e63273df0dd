package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedDescriptor is returned for connection descriptors no driver here understands.
var ErrUnsupportedDescriptor = errors.New("unsupported datastore descriptor")

// hostPort matches scheme-less network addresses such as "db:5432/voting",
// which would otherwise be taken for a relative sqlite path.
var hostPort = regexp.MustCompile(`^[A-Za-z0-9.-]+:[0-9]+(/.*)?$`)

// ParseDescriptor maps a connection descriptor onto a dialect and a driver DSN.
//
//	postgres://... | postgresql://...   -> pgx
//	sqlite://path | file:path | path    -> modernc sqlite
//
// A scheme-less host:port is rejected rather than opened as a local file.
func ParseDescriptor(descriptor string) (Dialect, string, error) {
	descriptor = strings.TrimSpace(descriptor)
	lower := strings.ToLower(descriptor)

	switch {
	case descriptor == "":
		return "", "", fmt.Errorf("%w: empty", ErrUnsupportedDescriptor)
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, descriptor, nil
	case strings.HasPrefix(lower, "sqlite://"):
		path := descriptor[len("sqlite://"):]
		if path == "" {
			return "", "", fmt.Errorf("%w: sqlite path missing", ErrUnsupportedDescriptor)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(lower, "file:"):
		return DialectSQLite, descriptor, nil
	case strings.Contains(lower, "://"):
		scheme := lower[:strings.Index(lower, "://")]
		return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedDescriptor, scheme)
	case hostPort.MatchString(descriptor):
		return "", "", fmt.Errorf("%w: network address without a scheme", ErrUnsupportedDescriptor)
	default:
		return DialectSQLite, descriptor, nil
	}
}

// Open opens a handle for the dialect. Callers ping it before first use.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectSQLite:
		return openSQLite(dsn)
	case DialectPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
		return db, nil
	default:
		return nil, fmt.Errorf("%w: dialect %q", ErrUnsupportedDescriptor, dialect)
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// :memory: databases are per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}
	db.SetMaxIdleConns(1)

	return db, nil
}
