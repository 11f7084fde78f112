package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blogd/domain"
	"blogd/errs"
)

// FindPostByID retrieves a post with its likers.
func (s *Store) FindPostByID(ctx context.Context, id string) (*domain.Post, error) {
	if !validID(id) {
		return nil, errs.ErrPostNotFound
	}
	db := s.db.WithContext(ctx)
	var post domain.Post
	if err := preloadAuthor(db).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPostNotFound
		}
		return nil, errors.Wrap(err, "find post")
	}
	if err := loadLikers(db, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// FindPosts retrieves the posts matching filter, newest first.
func (s *Store) FindPosts(ctx context.Context, filter domain.PostFilter) ([]*domain.Post, error) {
	db := s.db.WithContext(ctx)
	q := preloadAuthor(db.Model(&domain.Post{}))
	if filter.AuthorID != nil {
		if !validID(*filter.AuthorID) {
			return []*domain.Post{}, nil
		}
		q = q.Where("author_id = ?", *filter.AuthorID)
	}
	offset, limit := filter.Window()
	posts := []*domain.Post{}
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "find posts")
	}
	if err := loadLikers(db, posts...); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost will create the provided post and backfill its timestamps.
func (s *Store) CreatePost(ctx context.Context, post *domain.Post) error {
	if !validID(post.AuthorID) {
		return errs.ErrUserNotFound
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return errs.ErrUserNotFound
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return errs.Errorf(errs.ECONFLICT, "A post with this id already exists.")
		}
		return errors.Wrap(err, "insert post")
	}
	post.LikerIDs = []string{}
	return nil
}

// ToggleLike locks the post row, then deletes the like if present and
// inserts it otherwise. Toggles on the same post queue up behind the row
// lock, so the count read at the end always reflects every earlier toggle.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (*domain.LikeState, error) {
	if !validID(postID) {
		return nil, errs.ErrPostNotFound
	}
	if !validID(userID) {
		return nil, errs.ErrUserNotFound
	}
	state := &domain.LikeState{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post domain.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&post, "id = ?", postID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrPostNotFound
			}
			return errors.Wrap(err, "lock post")
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&domain.Like{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete like")
		}
		if res.RowsAffected == 0 {
			like := domain.Like{PostID: postID, UserID: userID}
			if err := tx.Omit(clause.Associations).Create(&like).Error; err != nil {
				if errors.Is(err, gorm.ErrForeignKeyViolated) {
					return errs.ErrUserNotFound
				}
				return errors.Wrap(err, "insert like")
			}
			state.LikedByUser = true
		}

		err = tx.Model(&domain.Post{}).Where("id = ?", postID).
			UpdateColumn("updated_at", time.Now().UTC()).Error
		if err != nil {
			return errors.Wrap(err, "touch post")
		}
		var count int64
		if err := tx.Model(&domain.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
			return errors.Wrap(err, "count likes")
		}
		state.LikesCount = int(count)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// preloadAuthor loads the public part of each post's author in one extra query.
func preloadAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "username")
	})
}

// loadLikers fills in LikerIDs for every given post with a single query.
func loadLikers(db *gorm.DB, posts ...*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		p.LikerIDs = []string{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	var likes []domain.Like
	err := db.Select("post_id", "user_id").
		Where("post_id IN ?", ids).
		Order("user_id").
		Find(&likes).Error
	if err != nil {
		return errors.Wrap(err, "load likers")
	}
	for _, l := range likes {
		if p, ok := byID[l.PostID]; ok {
			p.LikerIDs = append(p.LikerIDs, l.UserID)
		}
	}
	return nil
}
