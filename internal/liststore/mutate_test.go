package liststore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/state"
)

func loadedStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(vehicleSchema, opts...)
	t.Cleanup(s.Close)
	res := s.Load(context.Background(), static(`[{"_id":"A","status":"active"},{"_id":"B","status":"active"},{"_id":"C","status":"active"}]`))
	require.Equal(t, OutcomeLoaded, res.Outcome)
	return s
}

// blockingRemote returns a remote call that signals when it starts and
// finishes with the error sent on finish.
func blockingRemote() (RemoteCall, <-chan struct{}, chan<- error) {
	started := make(chan struct{})
	finish := make(chan error)
	var once atomic.Bool
	return func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		return <-finish
	}, started, finish
}

func TestMutate_RollbackRestoresSnapshot(t *testing.T) {
	s := loadedStore(t)
	before := s.Items()

	remote, started, finish := blockingRemote()
	done := make(chan MutationResult)
	go func() { done <- s.Mutate(context.Background(), "B", RemoveByID(), remote) }()

	<-started
	assert.Equal(t, []string{"A", "C"}, ids(s.Items()), "local change is visible before the remote answers")
	assert.Equal(t, []string{"A", "C"}, ids(s.View()))

	finish <- errors.New("server exploded")
	res := <-done

	assert.Equal(t, MutationRolledBack, res.Outcome)
	assert.Equal(t, "could not update vehicles: changes were reverted", res.Message)
	after := s.Items()
	require.Len(t, after, 3)
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
	assert.Equal(t, res.Message, s.Snapshot().MutationErr)
}

func TestMutate_SingleInFlightPerID(t *testing.T) {
	rec := newFakeRecorder()
	s := loadedStore(t, WithRecorder(rec))

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	remote := func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	}

	done := make(chan MutationResult)
	go func() { done <- s.Mutate(context.Background(), "B", RemoveByID(), remote) }()
	<-started

	second := s.Mutate(context.Background(), "B", RemoveByID(), remote)
	assert.Equal(t, MutationRejected, second.Outcome)
	assert.ErrorIs(t, second.Err, ErrMutationInFlight)

	close(release)
	first := <-done
	assert.Equal(t, MutationCommitted, first.Outcome)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"A", "C"}, ids(s.Items()))

	third := s.Mutate(context.Background(), "B", RemoveByID(), func(context.Context) error { calls.Add(1); return nil })
	assert.Equal(t, MutationCommitted, third.Outcome)
	assert.Equal(t, int32(2), calls.Load())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.mutations["rejected"])
	assert.Equal(t, 2, rec.mutations["committed"])
}

func TestMutate_OtherIDsProceedConcurrently(t *testing.T) {
	s := loadedStore(t)

	remote, started, finish := blockingRemote()
	done := make(chan MutationResult)
	go func() { done <- s.Mutate(context.Background(), "A", RemoveByID(), remote) }()
	<-started

	res := s.Mutate(context.Background(), "C", SetField("status", "inactive"), func(context.Context) error { return nil })
	assert.Equal(t, MutationCommitted, res.Outcome)

	finish <- nil
	assert.Equal(t, MutationCommitted, (<-done).Outcome)
	items := s.Items()
	assert.Equal(t, []string{"B", "C"}, ids(items))
	assert.Equal(t, "inactive", items[1].Fields["status"])
}

func TestMutate_RollbackOnlyTargetWhenListChanged(t *testing.T) {
	s := loadedStore(t)
	originalB := s.Items()[1]

	remote, started, finish := blockingRemote()
	done := make(chan MutationResult)
	go func() { done <- s.Mutate(context.Background(), "B", RemoveByID(), remote) }()
	<-started

	require.Equal(t, MutationCommitted,
		s.Mutate(context.Background(), "C", SetField("status", "maintenance"), func(context.Context) error { return nil }).Outcome)

	finish <- errors.New("nope")
	require.Equal(t, MutationRolledBack, (<-done).Outcome)

	items := s.Items()
	assert.Equal(t, []string{"A", "B", "C"}, ids(items))
	assert.Same(t, originalB, items[1])
	assert.Equal(t, "maintenance", items[2].Fields["status"], "the other mutation survives the rollback")
}

func TestMutate_RollbackOfStatusChange(t *testing.T) {
	s := loadedStore(t)
	originalA := s.Items()[0]

	res := s.Mutate(context.Background(), "A", SetField("status", "inactive"), func(context.Context) error {
		return errors.New("rejected")
	})
	assert.Equal(t, MutationRolledBack, res.Outcome)
	assert.Same(t, originalA, s.Items()[0])
	assert.Equal(t, "active", s.Items()[0].Fields["status"])
}

func TestMutate_LoadDuringMutationWins(t *testing.T) {
	s := loadedStore(t)

	remote, started, finish := blockingRemote()
	done := make(chan MutationResult)
	go func() { done <- s.Mutate(context.Background(), "B", RemoveByID(), remote) }()
	<-started

	s.Load(context.Background(), static(`[{"_id":"X"}]`))
	finish <- errors.New("nope")

	res := <-done
	assert.Equal(t, MutationRolledBack, res.Outcome)
	assert.Equal(t, []string{"X"}, ids(s.Items()))
}

func TestMutate_AuthFailure(t *testing.T) {
	var hooked atomic.Bool
	s := loadedStore(t, OnAuthFailure(func(error) { hooked.Store(true) }))

	for _, status := range []int{401, 403} {
		hooked.Store(false)
		res := s.Mutate(context.Background(), "A", RemoveByID(), func(context.Context) error {
			return &client.APIError{StatusCode: status, Message: "jwt expired"}
		})
		assert.Equal(t, MutationRolledBack, res.Outcome)
		assert.Equal(t, MessageUnauthorized, res.Message)
		assert.True(t, hooked.Load())
		assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
	}
}

func TestMutate_RemotePanicRollsBack(t *testing.T) {
	s := loadedStore(t)
	res := s.Mutate(context.Background(), "A", RemoveByID(), func(context.Context) error { panic("bug") })
	assert.Equal(t, MutationRolledBack, res.Outcome)
	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
}

func TestMutate_UnknownTarget(t *testing.T) {
	s := loadedStore(t)
	res := s.Mutate(context.Background(), "Z", RemoveByID(), func(context.Context) error { return errors.New("404") })
	assert.Equal(t, MutationRolledBack, res.Outcome)
	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
}

func TestMutate_WithRefetch(t *testing.T) {
	c := state.NewContainer(nil)
	s := loadedStore(t, WithContainer(c))

	res := s.Mutate(context.Background(), "B", RemoveByID(),
		func(context.Context) error { return nil },
		WithRefetch(static(`{"data":[{"_id":"A"},{"_id":"C"},{"_id":"D"}]}`)),
	)
	require.Equal(t, MutationCommitted, res.Outcome)
	require.NotNil(t, res.Refetch)
	assert.Equal(t, OutcomeLoaded, res.Refetch.Outcome)
	assert.Equal(t, []string{"A", "C", "D"}, ids(s.Items()))
	assert.Equal(t, []string{"A", "C", "D"}, ids(c.Select("vehicles")))
}

func TestMutate_CommitPublishesToContainer(t *testing.T) {
	c := state.NewContainer(nil)
	s := loadedStore(t, WithContainer(c))

	s.Mutate(context.Background(), "A", RemoveByID(), func(context.Context) error { return nil })
	assert.Equal(t, []string{"B", "C"}, ids(c.Select("vehicles")))
}

func TestMutate_ClosedStore(t *testing.T) {
	s := loadedStore(t)
	s.Close()

	var called atomic.Bool
	res := s.Mutate(context.Background(), "A", RemoveByID(), func(context.Context) error { called.Store(true); return nil })
	assert.Equal(t, MutationRejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrStoreClosed)
	assert.False(t, called.Load())
}

func TestMutate_RemoteSeesStoreCancellation(t *testing.T) {
	s := New(vehicleSchema)
	s.Load(context.Background(), static(`[{"_id":"A"}]`))

	started := make(chan struct{})
	done := make(chan MutationResult)
	go func() {
		done <- s.Mutate(context.Background(), "A", RemoveByID(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started
	s.Close()

	select {
	case res := <-done:
		assert.Equal(t, MutationRolledBack, res.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("remote call was not cancelled")
	}
}

// commitGate blocks the committing goroutine inside MutationFinished until
// release is closed.
type commitGate struct {
	nopRecorder
	entered chan struct{}
	release chan struct{}
}

func (g *commitGate) MutationFinished(_, outcome string) {
	if outcome == string(MutationCommitted) {
		close(g.entered)
		<-g.release
	}
}

func TestMutate_CommitDoesNotOverwriteNewerLoadInContainer(t *testing.T) {
	c := state.NewContainer(nil)
	gate := &commitGate{entered: make(chan struct{}), release: make(chan struct{})}
	s := loadedStore(t, WithContainer(c), WithRecorder(gate))

	done := make(chan MutationResult)
	go func() {
		done <- s.Mutate(context.Background(), "B", RemoveByID(), func(context.Context) error { return nil })
	}()
	<-gate.entered

	res := s.Load(context.Background(), static(`[{"_id":"A"},{"_id":"C"},{"_id":"D"}]`))
	require.Equal(t, OutcomeLoaded, res.Outcome)
	close(gate.release)
	require.Equal(t, MutationCommitted, (<-done).Outcome)

	assert.Equal(t, []string{"A", "C", "D"}, ids(s.Items()))
	assert.Equal(t, ids(s.Items()), ids(c.Select("vehicles")))
}

func TestMutate_LoadFetchedBeforeCommitIsDiscarded(t *testing.T) {
	c := state.NewContainer(nil)
	rec := newFakeRecorder()
	s := loadedStore(t, WithContainer(c), WithRecorder(rec))

	fetching := make(chan struct{})
	release := make(chan struct{})
	loaded := make(chan LoadResult)
	go func() {
		loaded <- s.Load(context.Background(), func(context.Context) ([]byte, error) {
			close(fetching)
			<-release
			return []byte(`[{"_id":"A"},{"_id":"B"},{"_id":"C"}]`), nil
		})
	}()
	<-fetching

	res := s.Mutate(context.Background(), "B", RemoveByID(), func(context.Context) error { return nil })
	require.Equal(t, MutationCommitted, res.Outcome)
	close(release)

	late := <-loaded
	assert.Equal(t, OutcomeDiscarded, late.Outcome)
	assert.ErrorIs(t, late.Err, ErrLoadPredatesCommit)
	assert.Equal(t, []string{"A", "C"}, ids(s.Items()), "the deleted record stays deleted")
	assert.Equal(t, []string{"A", "C"}, ids(c.Select("vehicles")))
	assert.Equal(t, StatusLoaded, s.Status())

	rec.mu.Lock()
	assert.Equal(t, 1, rec.stale)
	rec.mu.Unlock()

	fresh := s.Load(context.Background(), static(`[{"_id":"A"},{"_id":"C"},{"_id":"E"}]`))
	assert.Equal(t, OutcomeLoaded, fresh.Outcome)
	assert.Equal(t, []string{"A", "C", "E"}, ids(s.Items()))
}

func TestMutate_LargeNumericIDsStayDistinct(t *testing.T) {
	s := New(vehicleSchema)
	t.Cleanup(s.Close)
	res := s.Load(context.Background(), static(`[{"id":9007199254740993},{"id":9007199254740992}]`))
	require.Equal(t, OutcomeLoaded, res.Outcome)
	assert.Equal(t, []string{"9007199254740993", "9007199254740992"}, ids(s.Items()))

	committed := s.Mutate(context.Background(), "9007199254740993", RemoveByID(), func(context.Context) error { return nil })
	require.Equal(t, MutationCommitted, committed.Outcome)
	assert.Equal(t, []string{"9007199254740992"}, ids(s.Items()))
}
