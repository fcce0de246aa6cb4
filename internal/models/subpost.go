package models

import "time"

// SubPost is a titled section owned by a Post.
type SubPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by the SQL migrations.
func (SubPost) TableName() string {
	return "sub_posts"
}

// NestedSubPost is the representation of a sub-post embedded in its post.
type NestedSubPost struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Nested drops the owning post reference.
func (s SubPost) Nested() NestedSubPost {
	return NestedSubPost{
		ID:        s.ID,
		Title:     s.Title,
		Body:      s.Body,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// SubPostDraft is an incoming sub-post representation. ID 0 means "create".
type SubPostDraft struct {
	ID    uint
	Title string
	Body  string
}

// SubPostPlan is the outcome of diffing incoming drafts against a post's children.
type SubPostPlan struct {
	Updates []SubPostDraft
	Creates []SubPostDraft
	Deletes []uint
	// Ignored holds incoming ids that belong to no child of the post.
	Ignored []uint
}

// Empty reports whether applying the plan would change nothing.
func (p SubPostPlan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Creates) == 0 && len(p.Deletes) == 0
}

// SubPostChanges carries a partial sub-post update; nil fields are left as-is.
type SubPostChanges struct {
	PostID *uint
	Title  *string
	Body   *string
}
