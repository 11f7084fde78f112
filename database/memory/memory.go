// Package memory implements domain.Store in process memory. Nothing survives
// a restart; it backs the dev setup and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"blogd/domain"
	"blogd/errs"
)

// Store keeps users and posts in maps. Every post has its own lock, so like
// toggles on one post run one at a time while other posts stay unaffected.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byUsername map[string]string
	posts      map[string]*postEntry

	now func() time.Time
}

// postEntry guards a single post and its liker set.
type postEntry struct {
	mu     sync.Mutex
	post   domain.Post
	likers map[string]struct{}
}

// Ensure Store properly implements the domain.Store interface.
var _ domain.Store = &Store{}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		posts:      make(map[string]*postEntry),
		now:        time.Now,
	}
}

// FindUserByID returns a copy of the user with the given id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	found := *u
	return &found, nil
}

// FindUserByUsername returns a copy of the user with the given username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	found := *s.users[id]
	return &found, nil
}

// CreateUser stores a copy of user and backfills its timestamps.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[user.Username]; taken {
		return errs.ErrUsernameTaken
	}
	if _, exists := s.users[user.ID]; exists {
		return errs.Errorf(errs.ECONFLICT, "A user with this id already exists.")
	}
	now := s.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	stored := *user
	stored.Password = ""
	s.users[user.ID] = &stored
	s.byUsername[user.Username] = user.ID
	return nil
}

// FindPostByID returns a snapshot of the post, including its current likers.
func (s *Store) FindPostByID(ctx context.Context, id string) (*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.entry(id)
	if !ok {
		return nil, errs.ErrPostNotFound
	}
	p := e.snapshot()
	s.loadAuthors(p)
	return p, nil
}

// FindPosts returns snapshots of the posts matching filter, newest first.
func (s *Store) FindPosts(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*postEntry, 0, len(s.posts))
	for _, e := range s.posts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	posts := make([]*domain.Post, 0, len(entries))
	for _, e := range entries {
		p := e.snapshot()
		if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	offset, limit := filter.Window()
	if offset >= len(posts) {
		return []*domain.Post{}, nil
	}
	posts = posts[offset:]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	s.loadAuthors(posts...)
	return posts, nil
}

// CreatePost stores a copy of post with an empty liker set.
func (s *Store) CreatePost(ctx context.Context, post *domain.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[post.AuthorID]; !ok {
		return errs.ErrUserNotFound
	}
	if _, exists := s.posts[post.ID]; exists {
		return errs.Errorf(errs.ECONFLICT, "A post with this id already exists.")
	}
	now := s.now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = now
	}
	post.LikerIDs = []string{}
	stored := *post
	stored.Author = nil
	s.posts[post.ID] = &postEntry{
		post:   stored,
		likers: make(map[string]struct{}),
	}
	return nil
}

// ToggleLike flips userID's membership in the post's liker set while holding
// the post's lock.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (*domain.LikeState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.entry(postID)
	if !ok {
		return nil, errs.ErrPostNotFound
	}
	s.mu.RLock()
	_, known := s.users[userID]
	s.mu.RUnlock()
	if !known {
		return nil, errs.ErrUserNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, liked := e.likers[userID]
	if liked {
		delete(e.likers, userID)
	} else {
		e.likers[userID] = struct{}{}
	}
	e.post.UpdatedAt = s.now().UTC()
	return &domain.LikeState{
		LikesCount:  len(e.likers),
		LikedByUser: !liked,
	}, nil
}

// loadAuthors sets the public part of each post's author.
func (s *Store) loadAuthors(posts ...*domain.Post) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range posts {
		if u, ok := s.users[p.AuthorID]; ok {
			p.Author = &domain.User{ID: u.ID, Username: u.Username}
		}
	}
}

func (s *Store) entry(id string) (*postEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.posts[id]
	return e, ok
}

// snapshot copies the post so callers never share the liker set with the store.
func (e *postEntry) snapshot() *domain.Post {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.post
	p.LikerIDs = make([]string, 0, len(e.likers))
	for id := range e.likers {
		p.LikerIDs = append(p.LikerIDs, id)
	}
	sort.Strings(p.LikerIDs)
	return &p
}
