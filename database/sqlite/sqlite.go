// Package sqlite implements domain.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"blogd/domain"
	"blogd/errs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is a SQLite backed store. It holds a single connection: SQLite allows one
// writer at a time anyway, and a single connection turns every transaction
// into a critical section, which is what makes ToggleLike atomic.
type DB struct {
	db *sqlx.DB

	// Path of the database file.
	Path string

	now func() time.Time
}

// Ensure DB properly implements the domain.Store interface.
var _ domain.Store = &DB{}

// Open opens (creating it if needed) the database file at path. Call Migrate
// before using it.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite: path required")
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "sqlite: ping")
	}
	return &DB{
		db:   conn,
		Path: path,
		now:  time.Now,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.db.Close()
}

// Migrate applies all pending migrations.
func (db *DB) Migrate() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "sqlite: migrate up")
	}
	return nil
}

// Reset rolls back every migration and applies them again, which drops all data.
func (db *DB) Reset() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "sqlite: migrate down")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "sqlite: migrate up")
	}
	return nil
}

// migrator builds a migrate instance on top of the open connection. It is
// never closed: closing it would close the shared connection as well.
func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: load migrations")
	}
	driver, err := msqlite.WithInstance(db.db.DB, &msqlite.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: migrator")
	}
	return m, nil
}

// withTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise.
func (db *DB) withTx(ctx context.Context, reason string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "sqlite: begin transaction (%s)", reason)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "sqlite: commit (%s)", reason)
	}
	return nil
}

// constraintCode returns the extended result code of a constraint violation,
// or 0 if err is something else.
func constraintCode(err error) int {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return se.Code()
		}
	}
	return 0
}

// notFound translates sql.ErrNoRows into the given application error.
func notFound(err error, nf *errs.Error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nf
	}
	return errors.Wrap(err, msg)
}
