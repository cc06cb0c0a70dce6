package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// sqlDriverNames maps store drivers to database/sql driver names.
var sqlDriverNames = map[string]string{
	DriverMySQL:    "mysql",
	DriverSQLite:   "sqlite",
	DriverPostgres: "pgx",
}

// Store owns the identity store and whatever connection backs it.
type Store struct {
	Users UserRepository

	db     *sql.DB
	driver string
}

// Open connects to the store selected by driver, applies pending migrations
// and returns it ready for use. The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == DriverMemory {
		return &Store{Users: NewMemoryUserRepository(), driver: driver}, nil
	}

	db, err := NewDB(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating %s store: %w", driver, err)
	}

	users, err := NewSQLUserRepository(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{Users: users, db: db, driver: driver}, nil
}

// NewDB opens and pings a connection pool for driver.
func NewDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name, ok := sqlDriverNames[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	if driver == DriverMySQL {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}

	slog.Debug("database connected", "driver", driver)
	return db, nil
}

// mysqlDSN makes UPDATE report matched rather than changed rows, so
// rewriting an unchanged value still counts as finding the row.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// Driver reports which backend the store uses.
func (s *Store) Driver() string { return s.driver }

// Ping checks the backing database, if any.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases the backing database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
