package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogd/database/storetest"
	"blogd/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store { return openTestDB(t) })
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Migrate())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	alice := storetest.MustUser(t, db, "alice")
	storetest.MustPost(t, db, alice, "hello", time.Now())

	require.NoError(t, db.Reset())

	_, err := db.FindUserByUsername(ctx, "alice")
	assert.Error(t, err)
	posts, err := db.FindPosts(ctx, domain.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blog.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	alice := storetest.MustUser(t, db, "alice")
	post := storetest.MustPost(t, db, alice, "hello", time.Now().UTC())
	_, err = db.ToggleLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())
	got, err := db.FindPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, got.LikerIDs)
}
