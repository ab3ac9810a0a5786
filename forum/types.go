// Package forum holds the wire types shared by the sync engine, the HTTP
// client, and the reference backend.
package forum

import (
	"time"
)

// Post is a single discussion thread. The ID is assigned by the backend and
// is opaque and immutable; CreatedAt is fixed at creation. Comments are kept
// in insertion order, which is also display order.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	MediaRef  string    `json:"mediaRef,omitempty"`
	VoteCount int64     `json:"voteCount"`
	CreatedAt time.Time `json:"createdAt"`
	Comments  []Comment `json:"comments"`
}

// Comment is a child record owned by its parent post. It has no independent
// lifecycle; deleting the post removes it on the backend.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostDraft is the client-supplied input for creating a post. The backend
// assigns id and timestamp.
type PostDraft struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	MediaRef string `json:"mediaRef,omitempty"`
}

// PostPatch replaces the mutable fields of an existing post.
type PostPatch struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	MediaRef string `json:"mediaRef,omitempty"`
}

// Clone returns a copy of the post that shares no mutable state with the
// original.
func (p Post) Clone() Post {
	out := p
	if p.Comments != nil {
		out.Comments = make([]Comment, len(p.Comments))
		copy(out.Comments, p.Comments)
	}
	return out
}
