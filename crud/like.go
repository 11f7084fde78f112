package crud

import (
	"context"

	"blogd/domain"
	"blogd/errs"
)

// LikeService toggles likes. The flip itself is one atomic store operation.
type LikeService struct {
	store domain.PostStore
}

// NewLikeService returns an instance of LikeService.
func NewLikeService(store domain.PostStore) *LikeService {
	return &LikeService{
		store: store,
	}
}

// Toggle makes userID like the post if they don't yet, and unlike it if they
// do. It returns the post's like count and the user's membership afterwards.
func (ls *LikeService) Toggle(ctx context.Context, postID, userID string) (*domain.LikeState, error) {
	if userID == "" {
		return nil, errs.ErrAuthRequired
	}
	postID, ok := canonicalID(postID)
	if !ok {
		return nil, errs.ErrPostNotFound
	}
	userID, ok = canonicalID(userID)
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return ls.store.ToggleLike(ctx, postID, userID)
}
