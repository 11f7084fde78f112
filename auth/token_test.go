package auth

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestJWT(t *testing.T, clock *fakeClock) *JWT {
	t.Helper()
	j, err := NewJWT(testKey, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return j
}

func TestJWTIssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	j := newTestJWT(t, clock)
	userID := uuid.NewString()

	token, err := j.Issue(userID)
	require.NoError(t, err)

	got, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	j := newTestJWT(t, clock)
	userID := uuid.NewString()

	token, err := j.Issue(userID)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	got, err := j.Verify(token)
	require.NoError(t, err, "token must still be valid just before expiry")
	assert.Equal(t, userID, got)

	clock.Advance(time.Second)
	_, err = j.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "token must be invalid once now reaches expiry")

	clock.Advance(24 * time.Hour)
	_, err = j.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsForeignKey(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	other, err := NewJWT("another-key-another-key-another-k", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	token, err := other.Issue(uuid.NewString())
	require.NoError(t, err)

	_, err = newTestJWT(t, clock).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := newTestJWT(t, clock)
	token, err := j.Issue(uuid.NewString())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	})
	forgedString, err := forged.SigningString()
	require.NoError(t, err)
	forgedParts := strings.Split(forgedString, ".")

	// Keep the original signature but swap in a different payload.
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]
	_, err = j.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsMalformedPayloads(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := newTestJWT(t, clock)

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(clock.Now().Add(time.Hour))

	tests := map[string]string{
		"empty":           "",
		"garbage":         "not.a.token",
		"no subject":      sign(jwt.RegisteredClaims{ExpiresAt: exp}, jwt.SigningMethodHS256, []byte(testKey)),
		"non uuid sub":    sign(jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}, jwt.SigningMethodHS256, []byte(testKey)),
		"no expiry":       sign(jwt.RegisteredClaims{Subject: uuid.NewString()}, jwt.SigningMethodHS256, []byte(testKey)),
		"other algorithm": sign(jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: exp}, jwt.SigningMethodHS512, []byte(testKey)),
		"alg none":        sign(jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: exp}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
		"sub wrong type":  sign(jwt.MapClaims{"sub": 42, "exp": exp.Unix()}, jwt.SigningMethodHS256, []byte(testKey)),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := j.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTConcurrentVerify(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := newTestJWT(t, clock)
	userID := uuid.NewString()
	token, err := j.Issue(userID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := j.Verify(token)
			assert.NoError(t, err)
			assert.Equal(t, userID, got)
		}()
	}
	wg.Wait()
}

func TestNewJWTValidation(t *testing.T) {
	_, err := NewJWT("", time.Hour)
	assert.Error(t, err)

	_, err = NewJWT(testKey, -time.Minute)
	assert.Error(t, err)

	j, err := NewJWT(testKey, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, j.TTL())

	_, err = j.Issue("")
	assert.Error(t, err)
}
