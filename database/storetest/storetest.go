// Package storetest holds the behaviour every domain.Store backend must show.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogd/domain"
	"blogd/errs"
)

// Factory returns a fresh, empty store for a single test.
type Factory func(t *testing.T) domain.Store

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("DuplicateUsername", func(t *testing.T) { testDuplicateUsername(t, newStore(t)) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, newStore(t)) })
	t.Run("PostWindow", func(t *testing.T) { testPostWindow(t, newStore(t)) })
	t.Run("PostAuthors", func(t *testing.T) { testPostAuthors(t, newStore(t)) })
	t.Run("PostUnknownAuthor", func(t *testing.T) { testPostUnknownAuthor(t, newStore(t)) })
	t.Run("ToggleLike", func(t *testing.T) { testToggleLike(t, newStore(t)) })
	t.Run("ToggleLikeNotFound", func(t *testing.T) { testToggleLikeNotFound(t, newStore(t)) })
	t.Run("ToggleLikeConcurrent", func(t *testing.T) { testToggleLikeConcurrent(t, newStore(t)) })
}

// MustUser creates a user with the given username.
func MustUser(t *testing.T, s domain.UserStore, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "hash-of-" + username,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// MustPost creates a post by author created at the given time.
func MustPost(t *testing.T, s domain.PostStore, author *domain.User, title string, at time.Time) *domain.Post {
	t.Helper()
	p := &domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Title:     title,
		Body:      "body of " + title,
		ImageRef:  "img/" + title + ".png",
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, s.CreatePost(context.Background(), p))
	return p
}

func testUsers(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	assert.False(t, alice.CreatedAt.IsZero())

	byID, err := s.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "hash-of-alice", byID.PasswordHash)

	byName, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	_, err = s.FindUserByUsername(ctx, "bob")
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	_, err = s.FindUserByID(ctx, uuid.NewString())
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func testDuplicateUsername(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	impostor := &domain.User{
		ID:           uuid.NewString(),
		Username:     "alice",
		PasswordHash: "other",
	}
	err := s.CreateUser(ctx, impostor)
	assert.ErrorIs(t, err, errs.ErrUsernameTaken)

	stored, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, stored.ID)
	assert.Equal(t, "hash-of-alice", stored.PasswordHash)

	_, err = s.FindUserByID(ctx, impostor.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func testPosts(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	bob := MustUser(t, s, "bob")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := MustPost(t, s, alice, "first", base)
	second := MustPost(t, s, bob, "second", base.Add(time.Minute))
	third := MustPost(t, s, alice, "third", base.Add(2*time.Minute))

	got, err := s.FindPostByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Title, got.Title)
	assert.Equal(t, first.Body, got.Body)
	assert.Equal(t, first.ImageRef, got.ImageRef)
	assert.Equal(t, alice.ID, got.AuthorID)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Zero(t, got.LikesCount())

	_, err = s.FindPostByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrPostNotFound)

	all, err := s.FindPosts(ctx, domain.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids(all))

	mine, err := s.FindPosts(ctx, domain.PostFilter{AuthorID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID, first.ID}, ids(mine))

	nobody := uuid.NewString()
	none, err := s.FindPosts(ctx, domain.PostFilter{AuthorID: &nobody})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testPostWindow(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var want []string
	for i := 0; i < 5; i++ {
		p := MustPost(t, s, alice, fmt.Sprintf("post-%d", i), base.Add(time.Duration(i)*time.Second))
		want = append([]string{p.ID}, want...)
	}

	page, err := s.FindPosts(ctx, domain.PostFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, want[1:3], ids(page))

	past, err := s.FindPosts(ctx, domain.PostFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

// testPostAuthors checks that reads carry the id and username of each
// post's author, and nothing else of the account.
func testPostAuthors(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	bob := MustUser(t, s, "bob")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := MustPost(t, s, alice, "first", base)
	MustPost(t, s, bob, "second", base.Add(time.Minute))
	MustPost(t, s, alice, "third", base.Add(2*time.Minute))

	got, err := s.FindPostByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, alice.ID, got.Author.ID)
	assert.Equal(t, "alice", got.Author.Username)
	assert.Empty(t, got.Author.PasswordHash)

	all, err := s.FindPosts(ctx, domain.PostFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	var names []string
	for _, p := range all {
		require.NotNil(t, p.Author, p.Title)
		assert.Equal(t, p.AuthorID, p.Author.ID)
		assert.Empty(t, p.Author.PasswordHash)
		names = append(names, p.Author.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "alice"}, names)
}

func testPostUnknownAuthor(t *testing.T, s domain.Store) {
	err := s.CreatePost(context.Background(), &domain.Post{
		ID:       uuid.NewString(),
		AuthorID: uuid.NewString(),
		Title:    "orphan",
		Body:     "body",
		ImageRef: "img",
	})
	assert.ErrorIs(t, err, errs.ErrUserNotFound)
}

func testToggleLike(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	bob := MustUser(t, s, "bob")
	post := MustPost(t, s, alice, "hello", time.Now().UTC())

	state, err := s.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeState{LikesCount: 1, LikedByUser: true}, *state)

	state, err = s.ToggleLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeState{LikesCount: 2, LikedByUser: true}, *state)

	got, err := s.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, got.LikerIDs)
	assert.True(t, got.LikedBy(bob.ID))

	state, err = s.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeState{LikesCount: 1, LikedByUser: false}, *state)

	got, err = s.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, got.LikerIDs)
	assert.False(t, got.LikedBy(bob.ID))
}

func testToggleLikeNotFound(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	post := MustPost(t, s, alice, "hello", time.Now().UTC())

	_, err := s.ToggleLike(ctx, uuid.NewString(), alice.ID)
	assert.ErrorIs(t, err, errs.ErrPostNotFound)

	_, err = s.ToggleLike(ctx, post.ID, uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrUserNotFound)

	got, err := s.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikesCount())
}

// testToggleLikeConcurrent has n distinct users toggle the same post at
// once. No update may be lost, so the post ends up with exactly n likes.
// A second round from the same users brings it back to zero.
func testToggleLikeConcurrent(t *testing.T, s domain.Store) {
	const n = 20
	ctx := context.Background()
	author := MustUser(t, s, "author")
	post := MustPost(t, s, author, "popular", time.Now().UTC())
	users := make([]*domain.User, n)
	for i := range users {
		users[i] = MustUser(t, s, fmt.Sprintf("fan%02d", i))
	}

	round := func() {
		var wg sync.WaitGroup
		errc := make(chan error, n)
		for _, u := range users {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := s.ToggleLike(ctx, post.ID, id); err != nil {
					errc <- err
				}
			}(u.ID)
		}
		wg.Wait()
		close(errc)
		for err := range errc {
			require.NoError(t, err)
		}
	}

	round()
	got, err := s.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.LikesCount())

	round()
	got, err = s.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikesCount())
}

func ids(posts []*domain.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}
