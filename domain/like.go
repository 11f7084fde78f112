package domain

import (
	"time"
)

// Like represents a single member of a post's liker set: user UserID likes
// post PostID. The composite primary key is what keeps the set a set in the
// relational stores. A Like is created when a user toggles a post they don't
// like yet and destroyed when they toggle it again.
type Like struct {
	PostID string `json:"postId" gorm:"type:uuid;primaryKey"`
	Post   *Post  `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	UserID string `json:"userId" gorm:"type:uuid;primaryKey;index"`
	User   *User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
}

// LikeState is the outcome of a like toggle, seen from the toggling user.
type LikeState struct {
	LikesCount  int  `json:"likesCount"`
	LikedByUser bool `json:"likedByUser"`
}
