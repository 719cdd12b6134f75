package liststore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/signal"
)

type countingFetcher struct {
	calls atomic.Int32
	body  string
}

func (f *countingFetcher) fetch(context.Context) ([]byte, error) {
	body := []byte(f.body)
	f.calls.Add(1)
	return body, nil
}

func TestRefetcher_RunReloadsWhenRaised(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()
	f := &countingFetcher{body: `[{"_id":"1"}]`}
	sig := signal.New(signal.Changed("vehicles"))
	r := NewRefetcher(s, f.fetch, sig)

	// raised before Run starts: picked up immediately
	sig.Raise()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.calls.Load() == 1 && !sig.Raised()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1"}, ids(s.Items()))

	f.body = `[{"_id":"1"},{"_id":"2"}]`
	sig.Raise()
	require.Eventually(t, func() bool {
		return f.calls.Load() == 2 && !sig.Raised()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2"}, ids(s.Items()))
	assert.Equal(t, int64(2), r.Runs())

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefetcher_RunStopsWhenStoreCloses(t *testing.T) {
	s := New(vehicleSchema)
	r := NewRefetcher(s, static(`[]`), signal.New("x"))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()
	s.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStoreClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestRefetcher_ConcurrentCallsShareOneLoad(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []byte(`[{"_id":"1"}]`), nil
	}
	sig := signal.New("vehicles.changed")
	sig.Raise()
	r := NewRefetcher(s, fetch, sig)

	first := make(chan LoadResult, 1)
	go func() { first <- r.Refetch(context.Background()) }()
	<-started

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	abandoned := r.Refetch(gone)
	assert.Equal(t, OutcomeDiscarded, abandoned.Outcome)
	assert.ErrorIs(t, abandoned.Err, context.Canceled)
	assert.Equal(t, int64(1), r.Runs(), "the second call joined the running load")

	close(release)
	res := <-first
	assert.Equal(t, OutcomeLoaded, res.Outcome)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, sig.Raised())
}

func TestRefetcher_ResetsSignalOnFailure(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()
	sig := signal.New("vehicles.changed")
	sig.Raise()

	r := NewRefetcher(s, failing(errors.New("down")), sig)
	res := r.Refetch(context.Background())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, sig.Raised())
	assert.Equal(t, StatusError, s.Status())
}

func TestRefetcher_DebounceCoalescesRaises(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()
	f := &countingFetcher{body: `[]`}
	sig := signal.New("vehicles.changed")
	r := NewRefetcher(s, f.fetch, sig, WithDebounce(50*time.Millisecond, time.Second))

	sig.Raise()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 && !sig.Raised() }, 2*time.Second, 5*time.Millisecond)

	for range 5 {
		sig.Raise()
		sig.Reset()
	}
	sig.Raise()

	require.Eventually(t, func() bool { return r.Runs() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return r.Runs() > 2 }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRefetcher_ReloadsWhenAnswerPredatesCommit(t *testing.T) {
	s := loadedStore(t)
	sig := signal.New(signal.Changed("vehicles"))

	var calls atomic.Int32
	fetching := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(fetching)
			<-release
			return []byte(`[{"_id":"A"},{"_id":"B"},{"_id":"C"}]`), nil
		}
		return []byte(`[{"_id":"A"},{"_id":"C"}]`), nil
	}
	r := NewRefetcher(s, fetch, sig)
	sig.Raise()

	done := make(chan LoadResult)
	go func() { done <- r.Refetch(context.Background()) }()
	<-fetching

	committed := s.Mutate(context.Background(), "B", RemoveByID(), func(context.Context) error { return nil })
	require.Equal(t, MutationCommitted, committed.Outcome)
	close(release)

	res := <-done
	assert.Equal(t, OutcomeLoaded, res.Outcome)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(1), r.Runs())
	assert.Equal(t, []string{"A", "C"}, ids(s.Items()))
	assert.False(t, sig.Raised())
}
