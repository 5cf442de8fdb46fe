package optimistic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type board struct {
	Title string
	Cards []string
	Notes map[string]string
}

func (b board) with(card string) board {
	b.Cards = append(slices.Clone(b.Cards), card)
	return b
}

func (b board) without(card string) board {
	b.Cards = slices.DeleteFunc(slices.Clone(b.Cards), func(c string) bool { return c == card })
	return b
}

var errRemote = errors.New("remote unavailable")

var testKey = Key{Kind: "board", AggregateID: "b1"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	mu        sync.Mutex
	resolved  map[string]string
	abandoned []string
}

func (f *fakeResolver) Resolve(tempID, realID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved == nil {
		f.resolved = make(map[string]string)
	}
	f.resolved[tempID] = realID
}

func (f *fakeResolver) Abandon(tempID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, tempID)
}

func newTestEngine(initial board) (*Engine[board], *MemoryStore[board], *fakeResolver) {
	store := NewMemoryStore[board]()
	store.Set(testKey, initial)
	ids := &fakeResolver{}
	return NewEngine[board](store, ids, quietLogger()), store, ids
}

// addCard appends the temp card on speculate and swaps in the server id on commit.
func addCard(e *Engine[board], remote func(ctx context.Context, tempID string) (string, error)) *Mutation[board, string, string] {
	return NewMutation(e, Options[board, string, string]{
		Name:   "addCard",
		Remote: remote,
		Speculate: func(cur board, tempID string) (board, bool) {
			if slices.Contains(cur.Cards, tempID) {
				return cur, false
			}
			return cur.with(tempID), true
		},
		Commit: func(cur board, realID string, tempID string) board {
			i := slices.Index(cur.Cards, tempID)
			if i < 0 {
				return cur
			}
			cur.Cards = slices.Clone(cur.Cards)
			cur.Cards[i] = realID
			return cur
		},
		Resolve: func(realID string, tempID string) map[string]string {
			return map[string]string{tempID: realID}
		},
		TempIDs: func(tempID string) []string { return []string{tempID} },
	})
}

func TestStart_SpeculatesBeforeRemoteReturns(t *testing.T) {
	engine, store, ids := newTestEngine(board{Title: "todo", Cards: []string{"c1"}})
	release := make(chan struct{})
	m := addCard(engine, func(ctx context.Context, tempID string) (string, error) {
		<-release
		return "c2", nil
	})

	call := m.Start(context.Background(), testKey, "temp-card-1")

	cur, _ := store.Get(testKey)
	assert.Equal(t, []string{"c1", "temp-card-1"}, cur.Cards, "speculative write is visible immediately")

	close(release)
	got, err := call.Wait()
	require.NoError(t, err)
	assert.Equal(t, "c2", got)

	cur, _ = store.Get(testKey)
	assert.Equal(t, []string{"c1", "c2"}, cur.Cards)
	assert.Equal(t, map[string]string{"temp-card-1": "c2"}, ids.resolved)
}

func TestStart_RollbackIsExact(t *testing.T) {
	before := board{
		Title: "todo",
		Cards: []string{"c1", "c2"},
		Notes: map[string]string{"c1": "first"},
	}
	engine, store, ids := newTestEngine(before)
	m := addCard(engine, func(ctx context.Context, tempID string) (string, error) {
		return "", errRemote
	})

	_, err := m.Start(context.Background(), testKey, "temp-card-1").Wait()

	require.ErrorIs(t, err, errRemote)
	after, ok := store.Get(testKey)
	require.True(t, ok)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("cache after rollback mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"temp-card-1"}, ids.abandoned)
	assert.Empty(t, ids.resolved)
}

func TestStart_RollbackRemovesKeyThatWasAbsent(t *testing.T) {
	store := NewMemoryStore[board]()
	engine := NewEngine[board](store, nil, quietLogger())
	m := NewMutation(engine, Options[board, string, string]{
		Name:   "seed",
		Remote: func(context.Context, string) (string, error) { return "", errRemote },
	})
	snap := Snapshot[board]{}
	store.Set(testKey, board{Title: "written by someone else"})

	_, err := m.Dispatch(context.Background(), testKey, "x", snap).Wait()

	require.Error(t, err)
	_, ok := store.Get(testKey)
	assert.False(t, ok)
}

func TestCommit_AppliesAgainstLatestSnapshot(t *testing.T) {
	engine, store, _ := newTestEngine(board{Title: "todo"})
	slow := make(chan struct{})
	a := addCard(engine, func(ctx context.Context, tempID string) (string, error) {
		<-slow
		return "card-a", nil
	})
	b := addCard(engine, func(ctx context.Context, tempID string) (string, error) {
		return "card-b", nil
	})

	callA := a.Start(context.Background(), testKey, "temp-a")
	callB := b.Start(context.Background(), testKey, "temp-b")

	cur, _ := store.Get(testKey)
	assert.Equal(t, []string{"temp-a", "temp-b"}, cur.Cards, "both speculations visible in issue order")

	_, err := callB.Wait()
	require.NoError(t, err)
	close(slow)
	_, err = callA.Wait()
	require.NoError(t, err)

	cur, _ = store.Get(testKey)
	assert.Equal(t, []string{"card-a", "card-b"}, cur.Cards, "A's late commit must not clobber B")
}

func TestSpeculate_SplitFromDispatch(t *testing.T) {
	engine, store, _ := newTestEngine(board{Title: "todo", Cards: []string{"c1"}})
	rename := NewMutation(engine, Options[board, string, string]{
		Name: "rename",
		Remote: func(ctx context.Context, title string) (string, error) {
			return "", errRemote
		},
		Speculate: func(cur board, title string) (board, bool) {
			cur.Title = title
			return cur, true
		},
	})

	// Two quick edits: the rollback target is the state before the first one.
	first := rename.Speculate(testKey, "draft")
	rename.Speculate(testKey, "final")
	cur, _ := store.Get(testKey)
	require.Equal(t, "final", cur.Title)

	_, err := rename.Dispatch(context.Background(), testKey, "final", first).Wait()

	require.Error(t, err)
	cur, _ = store.Get(testKey)
	assert.Equal(t, "todo", cur.Title)
}

func TestSpeculate_NoCacheEntryWritesNothing(t *testing.T) {
	store := NewMemoryStore[board]()
	engine := NewEngine[board](store, nil, quietLogger())
	m := addCard(engine, func(context.Context, string) (string, error) { return "c9", nil })

	_, err := m.Start(context.Background(), testKey, "temp-x").Wait()

	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestCommit_SkipsEvictedSnapshot(t *testing.T) {
	engine, store, _ := newTestEngine(board{Title: "todo"})
	release := make(chan struct{})
	m := addCard(engine, func(context.Context, string) (string, error) {
		<-release
		return "c1", nil
	})

	call := m.Start(context.Background(), testKey, "temp-1")
	store.Delete(testKey)
	close(release)
	_, err := call.Wait()

	require.NoError(t, err)
	_, ok := store.Get(testKey)
	assert.False(t, ok)
}

func TestCall_DeferredAndCompleted(t *testing.T) {
	call, complete := Deferred[int]()
	select {
	case <-call.Done():
		t.Fatal("deferred call finished before completion")
	default:
	}

	complete(7, nil)
	complete(8, errRemote)

	got, err := call.Wait()
	assert.NoError(t, err)
	assert.Equal(t, 7, got, "only the first completion counts")

	_, err = Completed(0, errRemote).Wait()
	assert.ErrorIs(t, err, errRemote)
}

func TestCall_WaitContext(t *testing.T) {
	call, _ := Deferred[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := call.WaitContext(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryStore_UpdateCanDelete(t *testing.T) {
	store := NewMemoryStore[int]()
	store.Set(testKey, 1)

	store.Update(testKey, func(cur int, ok bool) (int, bool) {
		return cur + 1, ok
	})
	v, _ := store.Get(testKey)
	assert.Equal(t, 2, v)

	store.Update(testKey, func(int, bool) (int, bool) { return 0, false })
	_, ok := store.Get(testKey)
	assert.False(t, ok)
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "workout/w1", Key{Kind: "workout", AggregateID: "w1"}.String())
}
