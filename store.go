package main

import (
	"context"

	"github.com/pkg/errors"

	"blogd/database"
	"blogd/database/memory"
	"blogd/database/sqlite"
	"blogd/domain"
)

// backend is an open storage backend together with its schema operations.
type backend struct {
	domain.Store

	migrate func() error
	reset   func() error
	close   func() error
}

// openBackend opens the store selected by the database config.
func openBackend(ctx context.Context, cfg DatabaseConfig, isProd bool) (*backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		db := database.NewDB(cfg.Postgres.ConnectionInfo())
		db.MaxConns = cfg.Postgres.MaxConns
		if err := database.Open(ctx, db, isProd); err != nil {
			return nil, err
		}
		return &backend{
			Store:   database.NewStore(db),
			migrate: func() error { return database.AutoMigrate(db) },
			reset:   func() error { return database.DestructiveReset(db) },
			close:   func() error { return database.Close(db) },
		}, nil
	case DriverSqlite:
		db, err := sqlite.Open(cfg.Sqlite.Path)
		if err != nil {
			return nil, err
		}
		return &backend{
			Store:   db,
			migrate: db.Migrate,
			reset:   db.Reset,
			close:   db.Close,
		}, nil
	case DriverMemory:
		noop := func() error { return nil }
		return &backend{
			Store:   memory.New(),
			migrate: noop,
			reset:   noop,
			close:   noop,
		}, nil
	}
	return nil, errors.Errorf("unknown database driver %q", cfg.Driver)
}
