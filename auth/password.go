package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"

	"blogd/domain"
)

// Bcrypt hashes passwords with bcrypt after peppering them with a server-side
// secret. bcrypt generates and embeds a random salt on every call.
type Bcrypt struct {
	pepper []byte
	cost   int
}

// Ensure Bcrypt properly implements the domain.PasswordHasher interface.
var _ domain.PasswordHasher = &Bcrypt{}

// NewBcrypt returns a Bcrypt hasher. A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(pepper string, cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{
		pepper: []byte(pepper),
		cost:   cost,
	}
}

// Hash returns the bcrypt hash of the peppered password.
func (b *Bcrypt) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(b.peppered(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a password to a hash produced by Hash.
func (b *Bcrypt) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), b.peppered(password)) == nil
}

// peppered mixes the pepper in with an HMAC instead of appending it, which
// keeps the bcrypt input at a fixed 44 bytes, well below bcrypt's 72 byte limit.
func (b *Bcrypt) peppered(password string) []byte {
	mac := hmac.New(sha256.New, b.pepper)
	mac.Write([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}
