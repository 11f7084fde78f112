package crud

import (
	"github.com/pkg/errors"

	"blogd/domain"
)

// A ServicesConfig is any function that takes in a pointer to a Services
// object and returns an error. It's basically just wrapping the constructor
// method of any given crud service. It exists to be able to easily create
// the crud services using functional options in main.go.
type ServicesConfig func(*Services) error

// Services is a container object holding pointers to all the crud services.
// The crud services all share the store provided by Services.
type Services struct {
	store domain.Store
	User  *UserService
	Post  *PostService
	Like  *LikeService
}

// NewServices returns a new Services object, containing any crud services
// it's told to create by one of the passed in ServicesConfig functions.
// It shares the passed in store with any crud service it creates.
func NewServices(store domain.Store, cfgs ...ServicesConfig) (*Services, error) {
	if store == nil {
		return nil, errors.New("crud: store required")
	}
	s := Services{
		store: store,
	}
	for _, cfg := range cfgs {
		if err := cfg(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// WithUser wraps the constructor of UserService, NewUserService.
func WithUser(hasher domain.PasswordHasher, tokens domain.TokenService) ServicesConfig {
	return func(s *Services) error {
		if hasher == nil || tokens == nil {
			return errors.New("crud: user service needs a password hasher and a token service")
		}
		s.User = NewUserService(s.store, hasher, tokens)
		return nil
	}
}

// WithPost wraps the constructor of PostService, NewPostService.
func WithPost() ServicesConfig {
	return func(s *Services) error {
		s.Post = NewPostService(s.store)
		return nil
	}
}

// WithLike wraps the constructor of LikeService, NewLikeService.
func WithLike() ServicesConfig {
	return func(s *Services) error {
		s.Like = NewLikeService(s.store)
		return nil
	}
}
