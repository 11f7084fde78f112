package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"blogd/auth"
	"blogd/domain"
	"blogd/errs"
)

// postResponse is a post as seen by the requesting user.
type postResponse struct {
	*domain.Post
	Author *authorResponse `json:"author"`
	Likes  int             `json:"likesCount"`
	Liked  bool            `json:"likedByUser"`
}

// authorResponse is the public part of a post's author.
type authorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func newPostResponse(post *domain.Post, viewerID string) postResponse {
	res := postResponse{
		Post:  post,
		Likes: post.LikesCount(),
		Liked: post.LikedBy(viewerID),
	}
	if post.Author != nil {
		res.Author = &authorResponse{ID: post.Author.ID, Username: post.Author.Username}
	}
	return res
}

func (s *Server) registerPostRoutes(r *mux.Router) {
	r.HandleFunc("/posts", s.guard.Optional(s.handleListPosts)).Methods("GET")
	r.HandleFunc("/posts", s.guard.Require(s.handleCreatePost)).Methods("POST")
	// Registered before /posts/{id} so that "mine" is never taken for an id.
	r.HandleFunc("/posts/mine", s.guard.Require(s.handleListMyPosts)).Methods("GET")
	r.HandleFunc("/posts/{id}", s.guard.Optional(s.handleGetPost)).Methods("GET")
}

// handleListPosts handles the route "GET /posts?offset=&limit=".
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseWindow(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	s.listPosts(w, r, filter)
}

// handleListMyPosts handles the route "GET /posts/mine".
func (s *Server) handleListMyPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseWindow(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	userID := auth.UserID(r.Context())
	filter.AuthorID = &userID
	s.listPosts(w, r, filter)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, filter domain.PostFilter) {
	posts, err := s.ps.List(r.Context(), filter)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	viewerID := auth.UserID(r.Context())
	resp := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, newPostResponse(p, viewerID))
	}
	writeJSON(w, r, resp)
}

// handleGetPost handles the route "GET /posts/{id}".
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.ps.ByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, newPostResponse(post, auth.UserID(r.Context())))
}

// handleCreatePost handles the route "POST /posts". The author is always the
// authenticated user, whatever the body says.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		ImageRef string `json:"imageRef"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	post := &domain.Post{
		AuthorID: auth.UserID(r.Context()),
		Title:    input.Title,
		Body:     input.Body,
		ImageRef: input.ImageRef,
	}
	if err := s.ps.Create(r.Context(), post); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, r, newPostResponse(post, post.AuthorID))
}

// parseWindow reads the optional offset and limit query parameters.
func parseWindow(r *http.Request) (domain.PostFilter, error) {
	var filter domain.PostFilter
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errs.Errorf(errs.EINVALID, "Invalid offset.")
		}
		filter.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, errs.Errorf(errs.EINVALID, "Invalid limit.")
		}
		filter.Limit = n
	}
	return filter, nil
}
