package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pressly/goose/v3"
	"github.com/tokengate/tokengate-go/internal/repository/migrations"
)

// Migrate applies the embedded users schema to db. MySQL and SQLite go
// through golang-migrate; PostgreSQL goes through goose.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	switch driver {
	case DriverMySQL:
		dbDriver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			return err
		}
		return migrateUp(migrations.MySQL, "mysql", dbDriver)
	case DriverSQLite:
		dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if err != nil {
			return err
		}
		return migrateUp(migrations.SQLite, "sqlite", dbDriver)
	case DriverPostgres:
		goose.SetBaseFS(migrations.Postgres)
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}
		return goose.UpContext(ctx, db, "postgres")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func migrateUp(fsys fs.FS, dir string, dbDriver database.Driver) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "users", dbDriver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
