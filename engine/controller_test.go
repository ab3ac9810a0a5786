package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescroll/forumd/engine"
	"github.com/rescroll/forumd/forum"
)

// fakeRemote is an in-test RemoteStore that counts invocations per
// operation, so tests can verify which calls reached the adapter.
type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int

	posts        []forum.Post
	failWith     error
	upvoteResult int64
	nextID       int

	// when set, CreatePost signals on entered and then blocks until
	// release is closed
	entered chan struct{}
	release chan struct{}
}

var _ engine.RemoteStore = (*fakeRemote)(nil)

func newFakeRemote(posts ...forum.Post) *fakeRemote {
	return &fakeRemote{
		calls: map[string]int{},
		posts: posts,
	}
}

func (f *fakeRemote) called(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) ListPosts(ctx context.Context) ([]forum.Post, error) {
	f.called("list")
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]forum.Post, len(f.posts))
	copy(out, f.posts)
	return out, nil
}

func (f *fakeRemote) CreatePost(ctx context.Context, draft forum.PostDraft) (forum.Post, error) {
	f.called("create")
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.failWith != nil {
		return forum.Post{}, f.failWith
	}
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("srv-%d", f.nextID)
	f.mu.Unlock()
	return forum.Post{
		ID:        id,
		Title:     draft.Title,
		Body:      draft.Body,
		MediaRef:  draft.MediaRef,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeRemote) UpdatePost(ctx context.Context, id string, patch forum.PostPatch) (forum.Post, error) {
	f.called("update")
	if f.failWith != nil {
		return forum.Post{}, f.failWith
	}
	return forum.Post{
		ID:        id,
		Title:     patch.Title,
		Body:      patch.Body,
		MediaRef:  patch.MediaRef,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeRemote) DeletePost(ctx context.Context, id string) error {
	f.called("delete")
	return f.failWith
}

func (f *fakeRemote) UpvotePost(ctx context.Context, id string) (int64, error) {
	f.called("upvote")
	if f.failWith != nil {
		return 0, f.failWith
	}
	return f.upvoteResult, nil
}

func (f *fakeRemote) AddComment(ctx context.Context, id string, text string) (forum.Comment, error) {
	f.called("comment")
	if f.failWith != nil {
		return forum.Comment{}, f.failWith
	}
	return forum.Comment{ID: "cmt-1", Text: text, CreatedAt: time.Now()}, nil
}

func newController(remote *fakeRemote) *engine.Controller {
	return engine.NewController(engine.NewStore(), remote, nil)
}

func TestLoadSeedsStore(t *testing.T) {
	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)

	require.NoError(t, ctrl.Load(context.Background()))
	assert.Equal(t, 2, ctrl.Store().Len())
	assert.Equal(t, 1, remote.count("list"))
}

func TestLoadFailureLeavesStoreUntouched(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	remote.failWith = errors.New("backend down")
	err := ctrl.Load(context.Background())

	var lf *engine.LoadFailed
	assert.ErrorAs(err, &lf)
	assert.Equal(2, ctrl.Store().Len(), "previous contents survive a failed reload")
}

func TestSubmitCreate(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote()
	ctrl := newController(remote)

	created, err := ctrl.SubmitCreate(context.Background(), forum.PostDraft{Title: "hello"})
	require.NoError(t, err)

	// store content comes from the remote response, not the draft
	assert.Equal("srv-1", created.ID)
	got, ok := ctrl.Store().Get("srv-1")
	assert.True(ok)
	assert.Equal("hello", got.Title)
	assert.False(ctrl.Submitting())
}

func TestSubmitCreateBlankTitleNeverReachesRemote(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote()
	ctrl := newController(remote)

	_, err := ctrl.SubmitCreate(context.Background(), forum.PostDraft{Title: "   "})

	var ve *engine.ValidationError
	assert.ErrorAs(err, &ve)
	assert.Equal(0, remote.totalCalls(), "validation failures must not hit the adapter")
	assert.Equal(0, ctrl.Store().Len())
}

func TestSubmitCreateFailureLeavesStoreUntouched(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote()
	remote.failWith = errors.New("rejected")
	ctrl := newController(remote)

	_, err := ctrl.SubmitCreate(context.Background(), forum.PostDraft{Title: "hello"})

	var mf *engine.MutationFailed
	assert.ErrorAs(err, &mf)
	assert.Equal(0, ctrl.Store().Len())
	assert.False(ctrl.Submitting(), "guard releases on failure")
}

func TestSubmitUpdate(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	updated, err := ctrl.SubmitUpdate(context.Background(), "1", forum.PostPatch{Title: "Resume tips v2"})
	require.NoError(t, err)
	assert.Equal("Resume tips v2", updated.Title)

	got, _ := ctrl.Store().Get("1")
	assert.Equal("Resume tips v2", got.Title)
}

func TestSubmitUpdateFailureLeavesStoreUntouched(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	remote.failWith = errors.New("rejected")
	_, err := ctrl.SubmitUpdate(context.Background(), "1", forum.PostPatch{Title: "new title"})

	var mf *engine.MutationFailed
	assert.ErrorAs(err, &mf)
	got, _ := ctrl.Store().Get("1")
	assert.Equal("Resume tips", got.Title)
}

func TestSubmitDelete(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	require.NoError(t, ctrl.SubmitDelete(context.Background(), "2"))

	_, ok := ctrl.Store().Get("2")
	assert.False(ok)

	// any projection computed afterwards excludes it
	for _, mode := range []engine.SortMode{engine.SortByRecency, engine.SortByVotes} {
		got := engine.Project(ctrl.Store().List(), engine.ViewState{Sort: mode})
		assert.Equal([]string{"1"}, ids(got))
	}
}

func TestSubmitDeleteConfirmationGate(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	var asked forum.Post
	ctrl.Confirm = func(p forum.Post) bool {
		asked = p
		return false
	}

	err := ctrl.SubmitDelete(context.Background(), "1")
	assert.ErrorIs(err, engine.ErrDeleteAborted)
	assert.Equal("Resume tips", asked.Title)
	assert.Equal(0, remote.count("delete"), "declined delete must not hit the adapter")
	assert.Equal(2, ctrl.Store().Len())
}

func TestSubmitDeleteFailureLeavesStoreUntouched(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	remote.failWith = errors.New("rejected")
	err := ctrl.SubmitDelete(context.Background(), "1")

	var mf *engine.MutationFailed
	assert.ErrorAs(err, &mf)
	assert.Equal(2, ctrl.Store().Len())
}

func TestSubmitComment(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	cmt, err := ctrl.SubmitComment(context.Background(), "1", "nice post")
	require.NoError(t, err)
	assert.Equal("cmt-1", cmt.ID)

	got, _ := ctrl.Store().Get("1")
	require.Len(t, got.Comments, 1)
	assert.Equal("nice post", got.Comments[0].Text)
}

func TestSubmitCommentBlankTextNeverReachesRemote(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))
	before := remote.totalCalls()

	_, err := ctrl.SubmitComment(context.Background(), "1", "  \t ")

	var ve *engine.ValidationError
	assert.ErrorAs(err, &ve)
	assert.Equal(before, remote.totalCalls())
}

func TestSubmitVoteReconcilesToServerValue(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	remote.upvoteResult = 4
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	require.NoError(t, ctrl.SubmitVote(context.Background(), "1"))

	got, _ := ctrl.Store().Get("1")
	assert.Equal(int64(4), got.VoteCount, "count is the server's value, not local+1")
}

func TestSubmitVoteRollbackLaw(t *testing.T) {
	assert := assert.New(t)

	for _, start := range []int64{0, 1, 4, 100} {
		remote := newFakeRemote(post("1", "Resume tips", start, time.Now()))
		ctrl := newController(remote)
		require.NoError(t, ctrl.Load(context.Background()))

		remote.failWith = errors.New("rejected")
		err := ctrl.SubmitVote(context.Background(), "1")

		var mf *engine.MutationFailed
		assert.ErrorAs(err, &mf)
		got, _ := ctrl.Store().Get("1")
		assert.Equal(start, got.VoteCount, "failed vote must restore the pre-call value (start %d)", start)
	}
}

func TestSubmitVoteUnknownPost(t *testing.T) {
	remote := newFakeRemote()
	ctrl := newController(remote)

	err := ctrl.SubmitVote(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.Equal(t, 0, remote.count("upvote"))
}

func TestSingleFlightGuard(t *testing.T) {
	assert := assert.New(t)

	remote := newFakeRemote(fixtureSet()...)
	remote.upvoteResult = 4
	remote.entered = make(chan struct{})
	remote.release = make(chan struct{})
	ctrl := newController(remote)
	require.NoError(t, ctrl.Load(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.SubmitCreate(context.Background(), forum.PostDraft{Title: "slow"})
		done <- err
	}()

	// wait until the first mutation's remote call is in flight
	<-remote.entered
	assert.True(ctrl.Submitting())

	// a second pessimistic mutation is rejected without reaching the adapter
	_, err := ctrl.SubmitUpdate(context.Background(), "1", forum.PostPatch{Title: "blocked"})
	assert.ErrorIs(err, engine.ErrMutationInFlight)
	assert.Equal(0, remote.count("update"))

	err = ctrl.SubmitDelete(context.Background(), "1")
	assert.ErrorIs(err, engine.ErrMutationInFlight)
	assert.Equal(0, remote.count("delete"))

	// votes are independent of the guard and land immediately
	require.NoError(t, ctrl.SubmitVote(context.Background(), "1"))
	got, _ := ctrl.Store().Get("1")
	assert.Equal(int64(4), got.VoteCount)

	close(remote.release)
	require.NoError(t, <-done)
	assert.Equal(1, remote.count("create"))
	assert.False(ctrl.Submitting())
}
