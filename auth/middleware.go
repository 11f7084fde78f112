package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"blogd/domain"
	"blogd/errs"
)

// Guard protects routes with bearer tokens. A request without credentials is
// unauthorized (401), a request with credentials that don't verify is
// forbidden (403).
type Guard struct {
	tokens domain.TokenService
}

// NewGuard returns a Guard verifying tokens with the given service.
func NewGuard(tokens domain.TokenService) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate resolves the raw value of an Authorization header to a user id.
func (g *Guard) Authenticate(header string) (string, error) {
	token, ok := bearerToken(header)
	if !ok {
		return "", errs.ErrAuthRequired
	}
	userID, err := g.tokens.Verify(token)
	if err != nil {
		return "", errs.ErrTokenInvalid
	}
	return userID, nil
}

// Require only lets requests through that carry a valid bearer token. The
// resolved user id is available to next through UserID.
func (g *Guard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := g.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().
				Str("reason", errs.ErrorCode(err)).
				Str("path", r.URL.Path).
				Msg("rejected request")
			errs.ReturnError(w, r, err)
			return
		}
		next(w, r.WithContext(SetUserID(r.Context(), userID)))
	}
}

// Optional identifies the user when a valid bearer token is present and
// otherwise treats the request as anonymous. It never rejects a request.
func (g *Guard) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userID, err := g.Authenticate(r.Header.Get("Authorization")); err == nil {
			r = r.WithContext(SetUserID(r.Context(), userID))
		}
		next(w, r)
	}
}

// bearerToken extracts the token from a header of the form "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
