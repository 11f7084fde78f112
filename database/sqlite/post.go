package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	sqlite3 "modernc.org/sqlite/lib"

	"blogd/domain"
	"blogd/errs"
)

type postRow struct {
	ID        string    `db:"id"`
	AuthorID  string    `db:"author_id"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	ImageRef  string    `db:"image_ref"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *postRow) post() *domain.Post {
	return &domain.Post{
		ID:        r.ID,
		AuthorID:  r.AuthorID,
		Title:     r.Title,
		Body:      r.Body,
		ImageRef:  r.ImageRef,
		LikerIDs:  []string{},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type likeRow struct {
	PostID string `db:"post_id"`
	UserID string `db:"user_id"`
}

type authorRow struct {
	ID       string `db:"id"`
	Username string `db:"username"`
}

const selectPost = `SELECT id, author_id, title, body, image_ref, created_at, updated_at FROM posts`

// FindPostByID retrieves a post with its likers.
func (db *DB) FindPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var row postRow
	if err := db.db.GetContext(ctx, &row, selectPost+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, errs.ErrPostNotFound, "sqlite: find post by id")
	}
	post := row.post()
	if err := db.loadLikers(ctx, post); err != nil {
		return nil, err
	}
	if err := db.loadAuthors(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// FindPosts retrieves the posts matching filter, newest first.
func (db *DB) FindPosts(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.AuthorID != nil {
		where, args = append(where, "author_id = ?"), append(args, *filter.AuthorID)
	}
	query := selectPost
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	offset, limit := filter.Window()
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []postRow
	if err := db.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "sqlite: find posts")
	}
	posts := make([]*domain.Post, 0, len(rows))
	for i := range rows {
		posts = append(posts, rows[i].post())
	}
	if err := db.loadLikers(ctx, posts...); err != nil {
		return nil, err
	}
	if err := db.loadAuthors(ctx, posts...); err != nil {
		return nil, err
	}
	return posts, nil
}

// loadLikers fills in LikerIDs for every given post with a single query.
func (db *DB) loadLikers(ctx context.Context, posts ...*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	query, args, err := sqlx.In(`SELECT post_id, user_id FROM likes WHERE post_id IN (?) ORDER BY user_id`, ids)
	if err != nil {
		return errors.Wrap(err, "sqlite: build likers query")
	}
	var rows []likeRow
	if err := db.db.SelectContext(ctx, &rows, db.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "sqlite: load likers")
	}
	for _, r := range rows {
		p := byID[r.PostID]
		p.LikerIDs = append(p.LikerIDs, r.UserID)
	}
	return nil
}

// loadAuthors sets the id and username of each post's author with a single query.
func (db *DB) loadAuthors(ctx context.Context, posts ...*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	query, args, err := sqlx.In(`SELECT id, username FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "sqlite: build authors query")
	}
	var rows []authorRow
	if err := db.db.SelectContext(ctx, &rows, db.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "sqlite: load authors")
	}
	authors := make(map[string]*domain.User, len(rows))
	for _, r := range rows {
		authors[r.ID] = &domain.User{ID: r.ID, Username: r.Username}
	}
	for _, p := range posts {
		if a, ok := authors[p.AuthorID]; ok {
			author := *a
			p.Author = &author
		}
	}
	return nil
}

// CreatePost inserts a new post and backfills its timestamps.
func (db *DB) CreatePost(ctx context.Context, post *domain.Post) error {
	now := db.now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = now
	}
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, body, image_ref, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Title, post.Body, post.ImageRef, post.CreatedAt.UTC(), post.UpdatedAt.UTC())
	if err != nil {
		switch constraintCode(err) {
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return errs.ErrUserNotFound
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errs.Errorf(errs.ECONFLICT, "A post with this id already exists.")
		}
		return errors.Wrap(err, "sqlite: insert post")
	}
	post.LikerIDs = []string{}
	return nil
}

// ToggleLike deletes the like row if present and inserts it otherwise, then
// counts, all in one transaction on the single connection.
func (db *DB) ToggleLike(ctx context.Context, postID, userID string) (*domain.LikeState, error) {
	state := &domain.LikeState{}
	err := db.withTx(ctx, "toggle like", func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT 1 FROM posts WHERE id = ?`, postID); err != nil {
			return notFound(err, errs.ErrPostNotFound, "sqlite: find post")
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE post_id = ? AND user_id = ?`, postID, userID)
		if err != nil {
			return errors.Wrap(err, "sqlite: delete like")
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "sqlite: delete like")
		}
		if removed == 0 {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
				postID, userID, db.now().UTC())
			if err != nil {
				if constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
					return errs.ErrUserNotFound
				}
				return errors.Wrap(err, "sqlite: insert like")
			}
			state.LikedByUser = true
		}

		if _, err := tx.ExecContext(ctx, `UPDATE posts SET updated_at = ? WHERE id = ?`, db.now().UTC(), postID); err != nil {
			return errors.Wrap(err, "sqlite: touch post")
		}
		if err := tx.GetContext(ctx, &state.LikesCount, `SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID); err != nil {
			return errors.Wrap(err, "sqlite: count likes")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}
