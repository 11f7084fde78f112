package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"
	sqlite3 "modernc.org/sqlite/lib"

	"blogd/domain"
	"blogd/errs"
)

// userRow is the users table as sqlx scans it.
type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *userRow) user() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const selectUser = `SELECT id, username, password_hash, created_at, updated_at FROM users`

// FindUserByID retrieves a user by id.
func (db *DB) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	if err := db.db.GetContext(ctx, &row, selectUser+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, errs.ErrUserNotFound, "sqlite: find user by id")
	}
	return row.user(), nil
}

// FindUserByUsername retrieves a user by username.
func (db *DB) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var row userRow
	if err := db.db.GetContext(ctx, &row, selectUser+` WHERE username = ?`, username); err != nil {
		return nil, notFound(err, errs.ErrUserNotFound, "sqlite: find user by username")
	}
	return row.user(), nil
}

// CreateUser inserts a new user and backfills its timestamps. The unique
// index on username turns a lost registration race into ErrUsernameTaken.
func (db *DB) CreateUser(ctx context.Context, user *domain.User) error {
	now := db.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		switch constraintCode(err) {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return errs.ErrUsernameTaken
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errs.Errorf(errs.ECONFLICT, "A user with this id already exists.")
		}
		return errors.Wrap(err, "sqlite: insert user")
	}
	return nil
}
