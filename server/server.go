// Package server is the authoritative forum backend: posts and comments in a
// gorm-managed database behind a small JSON API. It owns referential
// integrity, so deleting a post also removes its comments.
package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Server struct {
	db  *gorm.DB
	log *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Post{}, &Comment{}); err != nil {
		return nil, err
	}
	return &Server{
		db:  db,
		log: logger,
	}, nil
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)

	e.GET("/posts", s.GetPosts)
	e.POST("/posts", s.CreatePost)
	e.PUT("/posts/:id", s.UpdatePost)
	e.DELETE("/posts/:id", s.DeletePost)

	e.POST("/posts/:id/upvote", s.UpvotePost)
	e.POST("/posts/:id/comments", s.AddComment)
}
