// Package engine keeps an in-memory mirror of a forum backend consistent
// with the authoritative store. Votes are applied optimistically and rolled
// back on failure; create, update, delete and comment wait for the backend
// to confirm before the mirror changes.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/rescroll/forumd/forum"
)

// RemoteStore is the narrow contract the engine requires from the
// authoritative backend. Each call either returns a value or fails with a
// single error. UpvotePost must be atomic on the remote side; the engine
// trusts that contract rather than implementing its own remote concurrency
// control.
type RemoteStore interface {
	ListPosts(ctx context.Context) ([]forum.Post, error)
	CreatePost(ctx context.Context, draft forum.PostDraft) (forum.Post, error)
	UpdatePost(ctx context.Context, id string, patch forum.PostPatch) (forum.Post, error)
	DeletePost(ctx context.Context, id string) error
	UpvotePost(ctx context.Context, id string) (int64, error)
	AddComment(ctx context.Context, id string, text string) (forum.Comment, error)
}

// Controller translates user intents into store and remote operations.
//
// Pessimistic mutations (create, update, delete, comment) go through a
// single-flight guard: at most one has an outstanding remote call, and a
// second submission is rejected with ErrMutationInFlight until the first
// resolves. The store is updated from the remote response, never from the
// request payload, so server-assigned ids and timestamps are picked up.
//
// Votes bypass the guard entirely: any number may be outstanding at once,
// each applied to the store before its remote call is issued.
type Controller struct {
	store  *Store
	remote RemoteStore
	log    *slog.Logger

	// Confirm gates SubmitDelete. A nil gate confirms everything.
	Confirm func(post forum.Post) bool

	submitting atomic.Bool
}

func NewController(store *Store, remote RemoteStore, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		remote: remote,
		log:    logger,
	}
}

func (c *Controller) Store() *Store { return c.store }

// Submitting reports whether a pessimistic mutation is awaiting its remote
// response. Presentation layers use this to disable inputs.
func (c *Controller) Submitting() bool {
	return c.submitting.Load()
}

func (c *Controller) acquire() bool {
	return c.submitting.CompareAndSwap(false, true)
}

func (c *Controller) release() {
	c.submitting.Store(false)
}

// Load replaces the store contents with the backend's full post set. On
// failure the store is left untouched; retry is a fresh user action.
func (c *Controller) Load(ctx context.Context) error {
	posts, err := c.remote.ListPosts(ctx)
	if err != nil {
		c.log.Error("failed to load posts", "err", err)
		return &LoadFailed{Err: err}
	}
	c.store.ReplaceAll(posts)
	c.log.Debug("loaded posts", "count", len(posts))
	return nil
}

// SubmitCreate creates a post on the backend and inserts the confirmed
// record into the store. A blank title is rejected locally without any
// remote call.
func (c *Controller) SubmitCreate(ctx context.Context, draft forum.PostDraft) (forum.Post, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return forum.Post{}, &ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if !c.acquire() {
		return forum.Post{}, ErrMutationInFlight
	}
	defer c.release()

	created, err := c.remote.CreatePost(ctx, draft)
	if err != nil {
		mutationsCounter.WithLabelValues("create", "error").Inc()
		c.log.Error("failed to create post", "err", err)
		return forum.Post{}, &MutationFailed{Op: "create post", Err: err}
	}
	c.store.Upsert(created)
	mutationsCounter.WithLabelValues("create", "ok").Inc()
	return created, nil
}

// SubmitUpdate replaces the mutable fields of an existing post, updating the
// store from the full record the backend returns.
func (c *Controller) SubmitUpdate(ctx context.Context, id string, patch forum.PostPatch) (forum.Post, error) {
	if strings.TrimSpace(patch.Title) == "" {
		return forum.Post{}, &ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if _, ok := c.store.Get(id); !ok {
		return forum.Post{}, ErrNotFound
	}
	if !c.acquire() {
		return forum.Post{}, ErrMutationInFlight
	}
	defer c.release()

	updated, err := c.remote.UpdatePost(ctx, id, patch)
	if err != nil {
		mutationsCounter.WithLabelValues("update", "error").Inc()
		c.log.Error("failed to update post", "post", id, "err", err)
		return forum.Post{}, &MutationFailed{Op: "update post", Err: err}
	}
	c.store.Upsert(updated)
	mutationsCounter.WithLabelValues("update", "ok").Inc()
	return updated, nil
}

// SubmitDelete removes a post after the confirmation gate passes and the
// backend confirms. Comment cleanup is the backend's responsibility.
func (c *Controller) SubmitDelete(ctx context.Context, id string) error {
	post, ok := c.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if c.Confirm != nil && !c.Confirm(post) {
		return ErrDeleteAborted
	}
	if !c.acquire() {
		return ErrMutationInFlight
	}
	defer c.release()

	if err := c.remote.DeletePost(ctx, id); err != nil {
		mutationsCounter.WithLabelValues("delete", "error").Inc()
		c.log.Error("failed to delete post", "post", id, "err", err)
		return &MutationFailed{Op: "delete post", Err: err}
	}
	c.store.Remove(id)
	mutationsCounter.WithLabelValues("delete", "ok").Inc()
	return nil
}

// SubmitComment appends a comment to the target post once the backend has
// assigned it an id and timestamp.
func (c *Controller) SubmitComment(ctx context.Context, id string, text string) (forum.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return forum.Comment{}, &ValidationError{Field: "comment", Reason: "must not be blank"}
	}
	if _, ok := c.store.Get(id); !ok {
		return forum.Comment{}, ErrNotFound
	}
	if !c.acquire() {
		return forum.Comment{}, ErrMutationInFlight
	}
	defer c.release()

	comment, err := c.remote.AddComment(ctx, id, text)
	if err != nil {
		mutationsCounter.WithLabelValues("comment", "error").Inc()
		c.log.Error("failed to add comment", "post", id, "err", err)
		return forum.Comment{}, &MutationFailed{Op: "add comment", Err: err}
	}
	if !c.store.AppendComment(id, comment) {
		c.log.Warn("comment parent disappeared before confirmation", "post", id)
	}
	mutationsCounter.WithLabelValues("comment", "ok").Inc()
	return comment, nil
}

// SubmitVote applies the upvote to the store synchronously, before the
// remote call is issued, so the displayed count moves immediately. On
// success the count is reconciled to the server's value rather than
// re-adding the delta, avoiding double counting under concurrent voters. On
// failure the exact inverse delta restores the pre-optimistic value.
//
// Votes run independently of the single-flight guard and of each other; the
// resolution always runs to completion regardless of what the user is
// currently viewing.
func (c *Controller) SubmitVote(ctx context.Context, id string) error {
	if !c.store.AdjustVote(id, 1) {
		c.log.Warn("vote for unknown post", "post", id)
		return ErrNotFound
	}
	votesInFlight.Inc()
	defer votesInFlight.Dec()

	count, err := c.remote.UpvotePost(ctx, id)
	if err != nil {
		if !c.store.AdjustVote(id, -1) {
			c.log.Warn("vote rollback target disappeared", "post", id)
		}
		voteRollbacksCounter.Inc()
		mutationsCounter.WithLabelValues("vote", "error").Inc()
		c.log.Error("failed to upvote post", "post", id, "err", err)
		return &MutationFailed{Op: "upvote", Err: err}
	}
	if !c.store.ReconcileVote(id, count) {
		c.log.Warn("vote reconcile target disappeared", "post", id)
	}
	mutationsCounter.WithLabelValues("vote", "ok").Inc()
	return nil
}
