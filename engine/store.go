package engine

import (
	"sync"

	"github.com/rescroll/forumd/forum"
)

// Store is the client-side mirror of the forum backend: an id-to-post map
// that preserves insertion order. It is the single source of truth for
// rendering between synchronizations. Only the Controller writes to it.
type Store struct {
	lk    sync.RWMutex
	posts map[string]*forum.Post
	order []string
}

func NewStore() *Store {
	return &Store{
		posts: map[string]*forum.Post{},
	}
}

// ReplaceAll overwrites the store contents wholesale, preserving the order of
// the given slice. Used on initial load; no merge logic, last writer wins.
func (s *Store) ReplaceAll(posts []forum.Post) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.posts = make(map[string]*forum.Post, len(posts))
	s.order = make([]string, 0, len(posts))
	for _, p := range posts {
		cp := p.Clone()
		if _, ok := s.posts[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.posts[p.ID] = &cp
	}
}

// Upsert inserts the post at the tail if its id is unknown, otherwise
// overwrites the existing entry in place, keeping its position.
func (s *Store) Upsert(post forum.Post) {
	s.lk.Lock()
	defer s.lk.Unlock()
	cp := post.Clone()
	if _, ok := s.posts[post.ID]; !ok {
		s.order = append(s.order, post.ID)
	}
	s.posts[post.ID] = &cp
}

// Remove drops the entry for the given id. No-op if absent.
func (s *Store) Remove(id string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.posts[id]; !ok {
		return
	}
	delete(s.posts, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AdjustVote adds delta to the vote count of an existing entry. Returns false
// if the id is absent, which callers treat as a condition worth logging.
func (s *Store) AdjustVote(id string, delta int64) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return false
	}
	p.VoteCount += delta
	return true
}

// ReconcileVote sets the vote count to the authoritative value returned by
// the backend. This is the only non-delta write to a vote count.
func (s *Store) ReconcileVote(id string, serverCount int64) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return false
	}
	p.VoteCount = serverCount
	return true
}

// AppendComment pushes the comment to the tail of the target post's comment
// sequence. Returns false if the id is absent.
func (s *Store) AppendComment(id string, c forum.Comment) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return false
	}
	p.Comments = append(p.Comments, c)
	return true
}

// Get resolves a post by id. The returned post is a copy; detail views call
// this at render time so they always see the latest store state.
func (s *Store) Get(id string) (forum.Post, bool) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return forum.Post{}, false
	}
	return p.Clone(), true
}

// List returns a snapshot of all posts in insertion order. The snapshot
// shares no mutable state with the store.
func (s *Store) List() []forum.Post {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make([]forum.Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.posts[id].Clone())
	}
	return out
}

func (s *Store) Len() int {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return len(s.posts)
}
