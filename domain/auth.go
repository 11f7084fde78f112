package domain

import "time"

// PasswordHasher turns plaintext passwords into salted one-way hashes.
// Verify never fails loudly, any mismatch or malformed hash is just false.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenService issues and verifies signed, time-limited bearer tokens that
// carry a user id. Verify returns an error for every token it does not fully
// trust; callers treat all of them the same way.
type TokenService interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
	// TTL is how long an issued token stays valid.
	TTL() time.Duration
}
