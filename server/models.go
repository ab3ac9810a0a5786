package server

import (
	"time"

	"github.com/rescroll/forumd/forum"
)

type Post struct {
	ID        string `gorm:"primarykey"`
	Title     string `gorm:"not null"`
	Body      string
	MediaRef  string
	Upvotes   int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Comments  []Comment `gorm:"constraint:OnDelete:CASCADE"`
}

type Comment struct {
	ID        string `gorm:"primarykey"`
	PostID    string `gorm:"index;not null"`
	Text      string `gorm:"not null"`
	CreatedAt time.Time
}

func (p *Post) toWire() forum.Post {
	comments := make([]forum.Comment, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = c.toWire()
	}
	return forum.Post{
		ID:        p.ID,
		Title:     p.Title,
		Body:      p.Body,
		MediaRef:  p.MediaRef,
		VoteCount: p.Upvotes,
		CreatedAt: p.CreatedAt,
		Comments:  comments,
	}
}

func (c Comment) toWire() forum.Comment {
	return forum.Comment{
		ID:        c.ID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}
