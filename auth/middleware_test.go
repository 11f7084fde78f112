package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogd/errs"
)

func TestGuardAuthenticate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	j := newTestJWT(t, clock)
	guard := NewGuard(j)
	userID := uuid.NewString()
	token, err := j.Issue(userID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", errs.EUNAUTHORIZED},
		{"blank header", "   ", errs.EUNAUTHORIZED},
		{"no scheme", token, errs.EUNAUTHORIZED},
		{"basic scheme", "Basic dXNlcjpwYXNz", errs.EUNAUTHORIZED},
		{"bearer without token", "Bearer ", errs.EUNAUTHORIZED},
		{"garbage token", "Bearer garbage", errs.EFORBIDDEN},
		{"valid", "Bearer " + token, ""},
		{"lowercase scheme", "bearer " + token, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guard.Authenticate(tt.header)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, userID, got)
				return
			}
			assert.Equal(t, tt.code, errs.ErrorCode(err))
			assert.Empty(t, got)
		})
	}
}

func TestGuardAuthenticateExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	j := newTestJWT(t, clock)
	token, err := j.Issue(uuid.NewString())
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = NewGuard(j).Authenticate("Bearer " + token)
	assert.Equal(t, errs.EFORBIDDEN, errs.ErrorCode(err))
}

func TestGuardRequire(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := newTestJWT(t, clock)
	guard := NewGuard(j)
	userID := uuid.NewString()
	token, err := j.Issue(userID)
	require.NoError(t, err)

	var seen string
	handler := guard.Require(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/posts/mine", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, seen)

	req = httptest.NewRequest(http.MethodGet, "/posts/mine", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rr = httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, seen)

	req = httptest.NewRequest(http.MethodGet, "/posts/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, userID, seen)
}

func TestGuardOptional(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := newTestJWT(t, clock)
	guard := NewGuard(j)
	userID := uuid.NewString()
	token, err := j.Issue(userID)
	require.NoError(t, err)

	var seen string
	handler := guard.Optional(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	for header, want := range map[string]string{
		"":                "",
		"Bearer nope":     "",
		"Bearer " + token: userID,
	} {
		seen = "unset"
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, want, seen)
	}
}
