package server

import (
	"errors"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/rescroll/forumd/forum"
)

type errorBody struct {
	ErrStr  string `json:"error"`
	Message string `json:"message"`
}

func jsonError(c echo.Context, code int, errStr, msg string) error {
	return c.JSON(code, errorBody{ErrStr: errStr, Message: msg})
}

type HealthStatus struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	PostCount    *int64 `json:"postCount,omitempty"`
	CommentCount *int64 `json:"commentCount,omitempty"`
}

func (s *Server) Health(c echo.Context) error {
	status := HealthStatus{
		Status:  "ok",
		Version: versioninfo.Short(),
	}
	if c.QueryParam("stats") == "true" {
		var postCount, commentCount int64
		if err := s.db.Model(&Post{}).Count(&postCount).Error; err != nil {
			s.log.Error("failed to count posts", "err", err)
			return jsonError(c, 500, "InternalError", "failed to gather stats")
		}
		if err := s.db.Model(&Comment{}).Count(&commentCount).Error; err != nil {
			s.log.Error("failed to count comments", "err", err)
			return jsonError(c, 500, "InternalError", "failed to gather stats")
		}
		status.PostCount = &postCount
		status.CommentCount = &commentCount
	}
	return c.JSON(200, status)
}

// GetPosts returns every post with its comments nested, newest post first,
// comments in insertion order.
func (s *Server) GetPosts(c echo.Context) error {
	var posts []Post
	err := s.db.
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC")
		}).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		s.log.Error("failed to list posts", "err", err)
		return jsonError(c, 500, "InternalError", "failed to list posts")
	}

	out := make([]forum.Post, len(posts))
	for i := range posts {
		out[i] = posts[i].toWire()
	}
	return c.JSON(200, out)
}

func (s *Server) CreatePost(c echo.Context) error {
	var draft forum.PostDraft
	if err := c.Bind(&draft); err != nil {
		return jsonError(c, 400, "InvalidBody", err.Error())
	}
	if strings.TrimSpace(draft.Title) == "" {
		return jsonError(c, 400, "InvalidTitle", "title must not be blank")
	}

	post := Post{
		ID:        ulid.Make().String(),
		Title:     draft.Title,
		Body:      draft.Body,
		MediaRef:  draft.MediaRef,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&post).Error; err != nil {
		s.log.Error("failed to create post", "err", err)
		return jsonError(c, 500, "InternalError", "failed to create post")
	}

	postsCreatedCounter.Inc()
	return c.JSON(201, post.toWire())
}

func (s *Server) UpdatePost(c echo.Context) error {
	id := c.Param("id")

	var patch forum.PostPatch
	if err := c.Bind(&patch); err != nil {
		return jsonError(c, 400, "InvalidBody", err.Error())
	}
	if strings.TrimSpace(patch.Title) == "" {
		return jsonError(c, 400, "InvalidTitle", "title must not be blank")
	}

	var post Post
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&post).Updates(map[string]interface{}{
			"title":     patch.Title,
			"body":      patch.Body,
			"media_ref": patch.MediaRef,
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, 404, "NotFound", "post not found")
	}
	if err != nil {
		s.log.Error("failed to update post", "post", id, "err", err)
		return jsonError(c, 500, "InternalError", "failed to update post")
	}

	// return the full record including comments, as stored
	if err := s.db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("comments.created_at ASC")
	}).First(&post, "id = ?", id).Error; err != nil {
		s.log.Error("failed to reload post", "post", id, "err", err)
		return jsonError(c, 500, "InternalError", "failed to reload post")
	}
	return c.JSON(200, post.toWire())
}

// DeletePost removes the post and all of its comments in one transaction.
func (s *Server) DeletePost(c echo.Context) error {
	id := c.Param("id")

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Post{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, 404, "NotFound", "post not found")
	}
	if err != nil {
		s.log.Error("failed to delete post", "post", id, "err", err)
		return jsonError(c, 500, "InternalError", "failed to delete post")
	}

	postsDeletedCounter.Inc()
	return c.JSON(200, map[string]string{"status": "ok"})
}

type upvoteResponse struct {
	VoteCount int64 `json:"voteCount"`
}

// UpvotePost increments the vote counter in the database rather than
// read-modify-writing it, so concurrent upvotes are never lost. The
// committed value is returned for client reconciliation.
func (s *Server) UpvotePost(c echo.Context) error {
	id := c.Param("id")

	var upvotes int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Post{}).Where("id = ?", id).
			UpdateColumn("upvotes", gorm.Expr("upvotes + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var post Post
		if err := tx.Select("upvotes").First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		upvotes = post.Upvotes
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, 404, "NotFound", "post not found")
	}
	if err != nil {
		s.log.Error("failed to upvote post", "post", id, "err", err)
		return jsonError(c, 500, "InternalError", "failed to upvote post")
	}

	upvotesCounter.Inc()
	return c.JSON(200, upvoteResponse{VoteCount: upvotes})
}

type addCommentBody struct {
	Text string `json:"text"`
}

func (s *Server) AddComment(c echo.Context) error {
	id := c.Param("id")

	var body addCommentBody
	if err := c.Bind(&body); err != nil {
		return jsonError(c, 400, "InvalidBody", err.Error())
	}
	if strings.TrimSpace(body.Text) == "" {
		return jsonError(c, 400, "InvalidComment", "comment text must not be blank")
	}

	var post Post
	if err := s.db.Select("id").First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, 404, "NotFound", "post not found")
		}
		s.log.Error("failed to look up post", "post", id, "err", err)
		return jsonError(c, 500, "InternalError", "failed to look up post")
	}

	comment := Comment{
		ID:        ulid.Make().String(),
		PostID:    id,
		Text:      body.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&comment).Error; err != nil {
		s.log.Error("failed to add comment", "post", id, "err", err)
		return jsonError(c, 500, "InternalError", "failed to add comment")
	}

	commentsCreatedCounter.Inc()
	return c.JSON(201, comment.toWire())
}
