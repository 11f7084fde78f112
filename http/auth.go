package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"blogd/domain"
	"blogd/errs"
)

// credentials is the json body of register and login requests.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
}

// handleRegister handles the route "POST /auth/register".
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	user, err := s.us.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	writeJSON(w, r, struct {
		Message string       `json:"message"`
		User    *domain.User `json:"user"`
	}{"Registered.", user})
}

// handleLogin handles the route "POST /auth/login". It returns a bearer
// token and the number of seconds it stays valid.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	session, err := s.us.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	writeJSON(w, r, struct {
		Message   string       `json:"message"`
		Token     string       `json:"token"`
		ExpiresIn int64        `json:"expiresIn"`
		User      *domain.User `json:"user"`
	}{"Logged in.", session.Token, int64(session.ExpiresIn.Seconds()), session.User})
}
