package engine

import (
	"sort"
	"strings"

	"github.com/rescroll/forumd/forum"
)

type SortMode int

const (
	SortByRecency = SortMode(iota)
	SortByVotes
)

func (m SortMode) String() string {
	switch m {
	case SortByRecency:
		return "recent"
	case SortByVotes:
		return "votes"
	default:
		return "<unknown>"
	}
}

// ViewState carries the display parameters for a projection. Values are
// immutable; transitions produce a new state.
type ViewState struct {
	Search string
	Sort   SortMode
}

func (s ViewState) WithSearch(term string) ViewState {
	s.Search = term
	return s
}

func (s ViewState) WithSort(mode SortMode) ViewState {
	s.Sort = mode
	return s
}

// Project computes the display sequence for the given posts: filter by
// case-insensitive substring match on the title (an empty term matches
// everything), then sort descending by creation time or vote count. The sort
// is stable, so posts with equal keys keep the store's insertion order.
//
// Project is pure: it never mutates its input and is safe to recompute on
// every state change.
func Project(posts []forum.Post, state ViewState) []forum.Post {
	needle := strings.ToLower(state.Search)
	out := make([]forum.Post, 0, len(posts))
	for _, p := range posts {
		if needle == "" || strings.Contains(strings.ToLower(p.Title), needle) {
			out = append(out, p)
		}
	}
	switch state.Sort {
	case SortByVotes:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].VoteCount > out[j].VoteCount
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}
