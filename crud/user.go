package crud

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"blogd/domain"
	"blogd/errs"
)

const (
	// UsernameMaxLength is the longest accepted username, in characters.
	UsernameMaxLength = 64
	// PasswordMinLength is the shortest accepted password, in characters.
	PasswordMinLength = 8
)

// UserService handles registration and login. It is the "backend" of the
// auth system, with http/auth.go dealing with requests and the auth package
// with tokens and middleware.
type UserService struct {
	userValidator
}

// userValidator runs validations on incoming User data.
// On success, it passes the data on to the user store.
// Otherwise, it returns the error of the validation that has failed.
type userValidator struct {
	store  domain.UserStore
	hasher domain.PasswordHasher
	tokens domain.TokenService

	dummyOnce sync.Once
	dummyHash string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresIn time.Duration
	User      *domain.User
}

// NewUserService returns an instance of UserService.
func NewUserService(store domain.UserStore, hasher domain.PasswordHasher, tokens domain.TokenService) *UserService {
	return &UserService{
		userValidator{
			store:  store,
			hasher: hasher,
			tokens: tokens,
		},
	}
}

// Register runs the registration validations, hashes the password and
// creates the user. The returned user carries a hash but no password.
func (uv *userValidator) Register(ctx context.Context, username, password string) (*domain.User, error) {
	user := &domain.User{
		Username: username,
		Password: password,
	}
	err := runUserValFns(ctx, user,
		uv.usernameNormalize,
		uv.usernameRequired,
		uv.usernameMaxLength,
		uv.passwordRequired,
		uv.passwordMinLength,
		uv.usernameIsAvail,
		uv.passwordBcrypt,
		uv.passwordHashRequired)
	if err != nil {
		return nil, err
	}
	user.ID = uuid.NewString()
	if err := uv.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks a submitted username and password and issues a token on
// success. An unknown username and a wrong password fail the same way and
// cost the same bcrypt comparison.
func (uv *userValidator) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errs.Errorf(errs.EINVALID, "Username and password are required.")
	}
	user, err := uv.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errs.ErrorCode(err) != errs.ENOTFOUND {
			return nil, err
		}
		uv.hasher.Verify(password, uv.dummy())
		return nil, errs.ErrInvalidCredentials
	}
	if !uv.hasher.Verify(password, user.PasswordHash) {
		return nil, errs.ErrInvalidCredentials
	}
	token, err := uv.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		ExpiresIn: uv.tokens.TTL(),
		User:      user,
	}, nil
}

// fallbackDummyHash is a well-formed bcrypt hash at cost 10. It stands in
// when the hasher fails to produce a dummy hash, so Verify still runs a full
// comparison for unknown usernames.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// dummy returns a hash nobody's password matches, computed once.
func (uv *userValidator) dummy() string {
	uv.dummyOnce.Do(func() {
		hash, err := uv.hasher.Hash(uuid.NewString())
		if err != nil || hash == "" {
			hash = fallbackDummyHash
		}
		uv.dummyHash = hash
	})
	return uv.dummyHash
}

// A userValFn is any function that takes in a pointer to a domain.User object and returns an error.
type userValFn func(ctx context.Context, user *domain.User) error

// runUserValFns runs any number of functions of type userValFn on the passed in User object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runUserValFns(ctx context.Context, user *domain.User, fns ...userValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func (uv *userValidator) usernameNormalize(_ context.Context, user *domain.User) error {
	user.Username = strings.TrimSpace(user.Username)
	return nil
}

func (uv *userValidator) usernameRequired(_ context.Context, user *domain.User) error {
	if user.Username == "" {
		return errs.Errorf(errs.EINVALID, "Username is required.")
	}
	return nil
}

func (uv *userValidator) usernameMaxLength(_ context.Context, user *domain.User) error {
	if utf8.RuneCountInString(user.Username) > UsernameMaxLength {
		return errs.Errorf(errs.EINVALID, "Username max length is %d characters.", UsernameMaxLength)
	}
	return nil
}

// usernameIsAvail makes sure the username is not taken yet. Two concurrent
// registrations can both pass this check; the store's unique index decides.
func (uv *userValidator) usernameIsAvail(ctx context.Context, user *domain.User) error {
	_, err := uv.store.FindUserByUsername(ctx, user.Username)
	if err == nil {
		return errs.ErrUsernameTaken
	}
	if errs.ErrorCode(err) == errs.ENOTFOUND {
		return nil
	}
	return err
}

func (uv *userValidator) passwordRequired(_ context.Context, user *domain.User) error {
	if user.Password == "" {
		return errs.Errorf(errs.EINVALID, "Password is required.")
	}
	return nil
}

func (uv *userValidator) passwordMinLength(_ context.Context, user *domain.User) error {
	if utf8.RuneCountInString(user.Password) < PasswordMinLength {
		return errs.Errorf(errs.EINVALID, "Password must be at least %d characters long.", PasswordMinLength)
	}
	return nil
}

// passwordBcrypt hashes the password and clears it from the user.
func (uv *userValidator) passwordBcrypt(_ context.Context, user *domain.User) error {
	hash, err := uv.hasher.Hash(user.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}

func (uv *userValidator) passwordHashRequired(_ context.Context, user *domain.User) error {
	if user.PasswordHash == "" {
		return errs.Errorf(errs.EINTERNAL, "Password hash missing.")
	}
	return nil
}
