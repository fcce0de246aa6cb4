// Package models contains data structures for the blog's domain models.
package models

import "time"

// MaxTitleLength bounds post and sub-post titles.
const MaxTitleLength = 200

// Post is the aggregate root of the blog: it owns its sub-posts and likes.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"size:200;not null" json:"title"`
	Body     string `gorm:"type:text;not null" json:"body"`
	AuthorID uint   `gorm:"not null;index" json:"-"`
	Author   User   `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	// ViewsCount is only ever changed by an in-place increment.
	ViewsCount int64 `gorm:"not null;default:0;check:views_count >= 0" json:"views_count"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64     `gorm:"->;-:migration" json:"likes_count"`
	SubPosts   []SubPost `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"subposts"`
	Likes      []Like    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostResponse is the wire shape of a post with its nested sub-posts.
type PostResponse struct {
	ID         uint            `json:"id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Author     User            `json:"author"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ViewsCount int64           `json:"views_count"`
	LikesCount int64           `json:"likes_count"`
	SubPosts   []NestedSubPost `json:"subposts"`
}

// Response converts a loaded post into its wire shape.
func (p Post) Response() PostResponse {
	subs := make([]NestedSubPost, 0, len(p.SubPosts))
	for _, s := range p.SubPosts {
		subs = append(subs, s.Nested())
	}
	return PostResponse{
		ID:         p.ID,
		Title:      p.Title,
		Body:       p.Body,
		Author:     p.Author,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		ViewsCount: p.ViewsCount,
		LikesCount: p.LikesCount,
		SubPosts:   subs,
	}
}

// PostResponses converts a slice of posts.
func PostResponses(posts []Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Response())
	}
	return out
}

// PostChanges carries a partial post update; nil fields are left as-is.
type PostChanges struct {
	Title *string
	Body  *string
}
