// Package database implements domain.Store on PostgreSQL through gorm. The
// connections come from a pgx pool.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blogd/domain"
)

// DB provides the database connection.
type DB struct {
	// Object-relational mapping.
	Gorm *gorm.DB
	// Connection info string containing database name, user, port etc.
	ConnectionInfo string
	// Upper bound of the pgx pool. Zero keeps the pgx default.
	MaxConns int32

	pool *pgxpool.Pool
}

// NewDB returns a new instance of DB.
func NewDB(connectionInfo string) *DB {
	return &DB{
		ConnectionInfo: connectionInfo,
	}
}

// Open opens a pgx pool and hands it to gorm. It also configures logging
// based on whether we're in development or in production.
func Open(ctx context.Context, db *DB, isProd bool) error {
	if db.ConnectionInfo == "" {
		return errors.New("connectionInfo required")
	}
	cfg, err := pgxpool.ParseConfig(db.ConnectionInfo)
	if err != nil {
		return errors.Wrap(err, "parse postgres connection info")
	}
	if db.MaxConns > 0 {
		cfg.MaxConns = db.MaxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Wrap(err, "ping postgres")
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if !isProd {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	db.Gorm, err = gorm.Open(postgres.New(postgres.Config{
		Conn: stdlib.OpenDBFromPool(pool),
	}), gormConfig)
	if err != nil {
		pool.Close()
		return errors.Wrap(err, "open gorm postgres connection")
	}
	db.pool = pool
	return nil
}

// AutoMigrate runs database migrations for all tables.
func AutoMigrate(db *DB) error {
	return db.Gorm.AutoMigrate(
		&domain.User{},
		&domain.Post{},
		&domain.Like{},
	)
}

// DestructiveReset drops all tables and rebuilds them.
func DestructiveReset(db *DB) error {
	err := db.Gorm.Migrator().DropTable(
		&domain.Like{},
		&domain.Post{},
		&domain.User{},
	)
	if err != nil {
		return err
	}
	return AutoMigrate(db)
}

// Close closes the database connection.
func Close(db *DB) error {
	if db.Gorm != nil {
		sqlDB, err := db.Gorm.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Close(); err != nil {
			return err
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}
