package domain

import (
	"context"
	"time"
)

const (
	// DefaultPostLimit is used when a PostFilter does not set a limit.
	DefaultPostLimit = 50
	// MaxPostLimit caps the number of posts returned by a single listing.
	MaxPostLimit = 200
)

// Post is a blog entry. AuthorID is set once at creation. LikerIDs holds the
// ids of every user that currently likes the post, each at most once, in no
// particular order. It is only ever changed through PostStore.ToggleLike.
type Post struct {
	ID       string `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID string `json:"authorId" gorm:"type:uuid;notNull;index"`
	Author   *User  `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Title    string `json:"title" gorm:"notNull"`
	Body     string `json:"body" gorm:"notNull"`
	ImageRef string `json:"imageRef" gorm:"notNull"`

	LikerIDs []string `json:"-" gorm:"-"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikesCount returns the number of users liking the post.
func (p *Post) LikesCount() int {
	return len(p.LikerIDs)
}

// LikedBy reports whether the given user likes the post.
// An empty user id (anonymous viewer) never does.
func (p *Post) LikedBy(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range p.LikerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PostFilter narrows down a post listing. Results are always sorted newest first.
type PostFilter struct {
	AuthorID *string `json:"authorId"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Window returns the offset and limit to apply, with the defaults and caps filled in.
func (f PostFilter) Window() (offset, limit int) {
	offset, limit = f.Offset, f.Limit
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	if limit > MaxPostLimit {
		limit = MaxPostLimit
	}
	return offset, limit
}

// PostStore persists posts and their liker sets.
type PostStore interface {
	FindPostByID(ctx context.Context, id string) (*Post, error)
	FindPosts(ctx context.Context, filter PostFilter) ([]*Post, error)
	CreatePost(ctx context.Context, post *Post) error

	// ToggleLike flips the membership of userID in the liker set of the post
	// and returns the resulting state. Implementations run the read, the flip
	// and the count as one atomic unit per post, so concurrent toggles never
	// lose an update. It returns errs.ErrPostNotFound for unknown posts.
	ToggleLike(ctx context.Context, postID, userID string) (*LikeState, error)
}

// Store bundles everything the services need from a storage backend.
type Store interface {
	UserStore
	PostStore
}
