package mutation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-sync/internal/domain"
)

func ptr[T any](v T) *T { return &v }

type recorder struct {
	mu        sync.Mutex
	ran       []Op
	discarded []error
}

func (r *recorder) run(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, op)
}

func (r *recorder) discard(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded = append(r.discarded, err)
}

func TestReplay_RunsInEnqueueOrderOnce(t *testing.T) {
	q := NewQueue()
	rec := &recorder{}

	a := CreateSet{WorkoutID: "w1", ExerciseID: "temp-ex-1", TempID: "temp-set-a", Payload: domain.SetPayload{Order: ptr(1)}}
	b := UpdateExercise{WorkoutID: "w1", ID: "temp-ex-1", Patch: domain.ExercisePatch{Note: ptr("slow")}}
	c := DeleteSet{WorkoutID: "w1", ID: "set-9"}
	q.Enqueue("temp-ex-1", a, rec.run, rec.discard)
	q.Enqueue("temp-ex-1", b, rec.run, rec.discard)
	q.Enqueue("temp-ex-1", c, rec.run, rec.discard)
	q.Enqueue("temp-ex-2", DeleteExercise{WorkoutID: "w1", ID: "temp-ex-2"}, rec.run, rec.discard)

	q.Replay("temp-ex-1", "ex-1")

	require.Len(t, rec.ran, 3)
	assert.Equal(t, KindCreateSet, rec.ran[0].Kind())
	assert.Equal(t, "ex-1", rec.ran[0].(CreateSet).ExerciseID)
	assert.Equal(t, KindUpdateExercise, rec.ran[1].Kind())
	assert.Equal(t, "ex-1", rec.ran[1].(UpdateExercise).ID)
	assert.Equal(t, c, rec.ran[2])
	assert.Empty(t, rec.discarded)
	assert.Equal(t, 1, q.Len(), "ops on other temp ids stay parked")

	q.Replay("temp-ex-1", "ex-1")
	assert.Len(t, rec.ran, 3, "a second replay runs nothing")
}

func TestEnqueue_MergesUpdatesOnSameTarget(t *testing.T) {
	q := NewQueue()
	first, second := &recorder{}, &recorder{}

	q.Enqueue("temp-set-1", UpdateSet{ID: "temp-set-1", Patch: domain.SetPatch{Weight: ptr(80.0)}}, first.run, first.discard)
	q.Enqueue("temp-set-1", UpdateSet{ID: "temp-set-1", Patch: domain.SetPatch{Reps: ptr(5), Weight: ptr(82.5)}}, second.run, second.discard)

	require.Equal(t, 1, q.Len())
	assert.Equal(t, []error{ErrMerged}, first.discarded)

	q.Replay("temp-set-1", "set-1")

	assert.Empty(t, first.ran)
	require.Len(t, second.ran, 1)
	got := second.ran[0].(UpdateSet)
	assert.Equal(t, "set-1", got.ID)
	assert.Equal(t, 82.5, *got.Patch.Weight)
	assert.Equal(t, 5, *got.Patch.Reps)
}

func TestEnqueue_DoesNotMergeDifferentTargets(t *testing.T) {
	q := NewQueue()
	rec := &recorder{}

	q.Enqueue("temp-ex-1", UpdateSet{ID: "temp-set-1", Patch: domain.SetPatch{Reps: ptr(1)}}, rec.run, nil)
	q.Enqueue("temp-ex-1", UpdateSet{ID: "temp-set-2", Patch: domain.SetPatch{Reps: ptr(2)}}, rec.run, nil)
	q.Enqueue("temp-ex-1", DeleteSet{ID: "temp-set-1"}, rec.run, nil)
	q.Enqueue("temp-ex-1", DeleteSet{ID: "temp-set-1"}, rec.run, nil)

	assert.Equal(t, 4, q.Len())
}

func TestEnqueue_ReorderKeepsLatest(t *testing.T) {
	q := NewQueue()
	rec := &recorder{}

	q.Enqueue("temp-ex-1", ReorderExercises{WorkoutID: "w1", Orders: map[string]int{"temp-ex-1": 0, "ex-2": 1}}, rec.run, nil)
	q.Enqueue("temp-ex-1", ReorderExercises{WorkoutID: "w1", Orders: map[string]int{"temp-ex-1": 1, "ex-2": 0}}, rec.run, nil)

	q.Replay("temp-ex-1", "ex-1")

	require.Len(t, rec.ran, 1)
	assert.Equal(t, map[string]int{"ex-1": 1, "ex-2": 0}, rec.ran[0].(ReorderExercises).Orders)
}

func TestDrop_DiscardsWithoutRunning(t *testing.T) {
	q := NewQueue()
	rec := &recorder{}

	q.Enqueue("temp-ex-1", UpdateExercise{ID: "temp-ex-1"}, rec.run, rec.discard)
	q.Enqueue("temp-ex-1", DeleteSet{ID: "s1"}, rec.run, rec.discard)
	q.Enqueue("temp-ex-1", DeleteSet{ID: "s2"}, rec.run, nil)

	q.Drop("temp-ex-1")

	assert.Empty(t, rec.ran)
	assert.Equal(t, []error{ErrDropped, ErrDropped}, rec.discarded)
	assert.Zero(t, q.Len())
}

func TestReplay_RunMayEnqueue(t *testing.T) {
	q := NewQueue()
	var ran []string

	q.Enqueue("temp-a", DeleteSet{ID: "temp-a"}, func(op Op) {
		ran = append(ran, op.(DeleteSet).ID)
		q.Enqueue("temp-b", DeleteSet{ID: "temp-b"}, func(op Op) {
			ran = append(ran, op.(DeleteSet).ID)
		}, nil)
	}, nil)

	q.Replay("temp-a", "a")
	q.Replay("temp-b", "b")

	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestRetarget_LeavesOtherIDsAlone(t *testing.T) {
	op := ReorderExercises{WorkoutID: "w1", Orders: map[string]int{"temp-x": 0, "ex-2": 1}}

	got := op.Retarget("temp-x", "ex-1").(ReorderExercises)

	assert.Equal(t, map[string]int{"ex-1": 0, "ex-2": 1}, got.Orders)
	assert.Equal(t, map[string]int{"temp-x": 0, "ex-2": 1}, op.Orders, "original map untouched")

	u := UpdateSet{ID: "set-3"}
	assert.Equal(t, u, u.Retarget("temp-x", "ex-1"))
}
