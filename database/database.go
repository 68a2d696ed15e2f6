// Package database opens the bun connection for the configured driver
// and applies the embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-userauth/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// goose keeps its base FS and dialect in package state
var gooseMu sync.Mutex

// Open returns a bun DB for driver ("sqlite" or "postgres") and dsn.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// in memory databases live and die with a single connection
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, goerrors.New("unsupported database driver: "+driver, goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
}

// Migrate applies every pending migration for driver.
func Migrate(ctx context.Context, db *bun.DB, driver string) error {
	dialect, dir := "sqlite3", "sqlite"
	if driver == DriverPostgres {
		dialect, dir = "postgres", "postgres"
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}
	return nil
}

// OpenAndMigrate opens the database and applies migrations, closing it
// again on failure.
func OpenAndMigrate(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "database is not reachable")
	}

	if err := Migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
