package domain

import (
	"context"
	"time"
)

// User is a registered account. Password only lives in memory between
// decoding a registration request and hashing it, PasswordHash is what gets
// stored. Neither of them is ever serialized.
type User struct {
	ID           string `json:"id" gorm:"type:uuid;primaryKey"`
	Username     string `json:"username" gorm:"notNull;uniqueIndex"`
	Password     string `json:"-" gorm:"-"`
	PasswordHash string `json:"-" gorm:"notNull"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStore is the credential store. Lookups return an errs.ENOTFOUND error
// when no user matches, CreateUser returns errs.ErrUsernameTaken when the
// username is already in use.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
}
