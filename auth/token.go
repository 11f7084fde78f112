package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blogd/domain"
)

// DefaultTokenTTL is how long an issued token stays valid unless configured otherwise.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken is the only error JWT.Verify returns. Bad signatures,
// foreign algorithms, malformed payloads and expired tokens all look alike.
var ErrInvalidToken = errors.New("auth: invalid token")

// JWT issues and verifies HS256 signed JSON web tokens whose subject is a user id.
// It holds no state besides its key, so it is safe for concurrent use.
type JWT struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// Ensure JWT properly implements the domain.TokenService interface.
var _ domain.TokenService = &JWT{}

// A JWTOption configures a JWT in NewJWT.
type JWTOption func(*JWT)

// WithClock replaces time.Now, which lets tests move time forward.
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWT) {
		j.now = now
	}
}

// NewJWT returns a token service signing with key. A ttl of 0 selects DefaultTokenTTL.
func NewJWT(key string, ttl time.Duration, opts ...JWTOption) (*JWT, error) {
	if key == "" {
		return nil, errors.New("auth: token signing key is required")
	}
	if ttl < 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	j := &JWT{
		key: []byte(key),
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// TTL returns the validity window of issued tokens.
func (j *JWT) TTL() time.Duration {
	return j.ttl
}

// Issue returns a signed token for userID, valid from now until now+TTL.
func (j *JWT) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a user id")
	}
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
}

// Verify checks the token's signature and expiry and returns the user id it
// was issued for. A token is expired once now reaches its expiry.
func (j *JWT) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", ErrInvalidToken
	}
	return id.String(), nil
}
