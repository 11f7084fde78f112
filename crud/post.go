package crud

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"blogd/domain"
	"blogd/errs"
)

// TitleMaxLength is the longest accepted post title, in characters.
const TitleMaxLength = 200

// PostService manages Posts.
type PostService struct {
	postValidator
}

// postValidator runs validations on incoming Post data.
// On success, it passes the data on to the post store.
// Otherwise, it returns the error of the validation that has failed.
type postValidator struct {
	store domain.PostStore
}

// NewPostService returns an instance of PostService.
func NewPostService(store domain.PostStore) *PostService {
	return &PostService{
		postValidator{
			store: store,
		},
	}
}

// Create runs validations needed for creating new posts, then stores the post
// with a fresh id and an empty liker set and reloads it.
func (pv *postValidator) Create(ctx context.Context, post *domain.Post) error {
	err := runPostValFns(post,
		pv.titleNormalize,
		pv.titleRequired,
		pv.titleMaxLength,
		pv.bodyRequired,
		pv.imageRefRequired,
		pv.authorRequired)
	if err != nil {
		return err
	}
	post.ID = uuid.NewString()
	post.LikerIDs = nil
	if err := pv.store.CreatePost(ctx, post); err != nil {
		return err
	}
	// Read it back so the caller gets the post as listings show it, author included.
	created, err := pv.store.FindPostByID(ctx, post.ID)
	if err != nil {
		return err
	}
	*post = *created
	return nil
}

// List returns the posts matching filter, newest first.
func (pv *postValidator) List(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	if filter.AuthorID != nil {
		id, ok := canonicalID(*filter.AuthorID)
		if !ok {
			return []*domain.Post{}, nil
		}
		filter.AuthorID = &id
	}
	return pv.store.FindPosts(ctx, filter)
}

// ByID returns a single post. Malformed ids can't name a post, so they are
// reported as not found.
func (pv *postValidator) ByID(ctx context.Context, id string) (*domain.Post, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, errs.ErrPostNotFound
	}
	return pv.store.FindPostByID(ctx, id)
}

// A postValFn is any function that takes in a pointer to a domain.Post object and returns an error.
type postValFn func(post *domain.Post) error

// runPostValFns runs any number of functions of type postValFn on the passed in Post object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runPostValFns(post *domain.Post, fns ...postValFn) error {
	for _, fn := range fns {
		if err := fn(post); err != nil {
			return err
		}
	}
	return nil
}

func (pv *postValidator) titleNormalize(post *domain.Post) error {
	post.Title = strings.TrimSpace(post.Title)
	post.ImageRef = strings.TrimSpace(post.ImageRef)
	return nil
}

func (pv *postValidator) titleRequired(post *domain.Post) error {
	if post.Title == "" {
		return errs.Errorf(errs.EINVALID, "Post title must not be empty.")
	}
	return nil
}

func (pv *postValidator) titleMaxLength(post *domain.Post) error {
	if utf8.RuneCountInString(post.Title) > TitleMaxLength {
		return errs.Errorf(errs.EINVALID, "Post title max length is %d characters.", TitleMaxLength)
	}
	return nil
}

func (pv *postValidator) bodyRequired(post *domain.Post) error {
	if strings.TrimSpace(post.Body) == "" {
		return errs.Errorf(errs.EINVALID, "Post body must not be empty.")
	}
	return nil
}

func (pv *postValidator) imageRefRequired(post *domain.Post) error {
	if post.ImageRef == "" {
		return errs.Errorf(errs.EINVALID, "Post image is required.")
	}
	return nil
}

func (pv *postValidator) authorRequired(post *domain.Post) error {
	id, ok := canonicalID(post.AuthorID)
	if !ok {
		return errs.Errorf(errs.EINVALID, "Post author is invalid.")
	}
	post.AuthorID = id
	return nil
}

// canonicalID parses id as a UUID and returns its canonical lowercase form.
func canonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
