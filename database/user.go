package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"blogd/domain"
	"blogd/errs"
)

// FindUserByID retrieves a user by id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, errs.ErrUserNotFound
	}
	return s.firstUser(ctx, "id = ?", id)
}

// FindUserByUsername retrieves a user by username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.firstUser(ctx, "username = ?", username)
}

// CreateUser will create the provided user and backfill data
// like the CreatedAt and UpdatedAt fields.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrUsernameTaken
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (s *Store) firstUser(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}
