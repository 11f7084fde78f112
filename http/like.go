package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"blogd/auth"
	"blogd/errs"
)

// registerLikeRoutes is a helper for registering all Like routes.
func (s *Server) registerLikeRoutes(r *mux.Router) {
	// Like the post if the user doesn't yet, unlike it otherwise.
	r.HandleFunc("/posts/{id}/like", s.guard.Require(s.handleToggleLike)).Methods("POST")
}

// handleToggleLike handles the route "POST /posts/{id}/like".
func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	state, err := s.ls.Toggle(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	message := "Unliked."
	if state.LikedByUser {
		message = "Liked."
	}
	writeJSON(w, r, struct {
		Message     string `json:"message"`
		LikesCount  int    `json:"likesCount"`
		LikedByUser bool   `json:"likedByUser"`
	}{message, state.LikesCount, state.LikedByUser})
}
