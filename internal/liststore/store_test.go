package liststore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/state"
)

var bookingSchema = normalize.Schema{
	Resource: "bookings",
	Rules: []normalize.FieldRule{
		normalize.StatusRule(),
		{Name: "pickupDate", Sources: []string{"pickupDate"}, Transform: normalize.Date, Empty: nil},
	},
}

var vehicleSchema = normalize.Schema{
	Resource: "vehicles",
	Rules: []normalize.FieldRule{
		{Name: "name", Sources: []string{"name"}, Transform: normalize.Text, Empty: normalize.EmptyText},
		{Name: "price", Sources: []string{"price"}, Transform: normalize.Money, Empty: decimal.Zero},
		{Name: "car_type", Sources: []string{"car_type"}, Transform: normalize.Lower, Empty: ""},
		{Name: "transmission", Sources: []string{"transmission"}, Transform: normalize.Lower, Empty: ""},
		normalize.StatusRule(),
	},
}

func static(body string) Fetcher {
	return func(context.Context) ([]byte, error) { return []byte(body), nil }
}

func failing(err error) Fetcher {
	return func(context.Context) ([]byte, error) { return nil, err }
}

type fakeRecorder struct {
	mu        sync.Mutex
	loads     map[string]int
	mutations map[string]int
	stale     int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{loads: map[string]int{}, mutations: map[string]int{}}
}

func (r *fakeRecorder) LoadFinished(_, outcome string, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads[outcome]++
}

func (r *fakeRecorder) MutationFinished(_, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations[outcome]++
}

func (r *fakeRecorder) StaleResponse(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func ids(items []*normalize.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestLoad_EndToEnd(t *testing.T) {
	s := New(bookingSchema, WithPreferredKeys("data", "bookings", "allBookings"))
	defer s.Close()
	assert.Equal(t, StatusIdle, s.Status())

	res := s.Load(context.Background(), static(`{"allBookings":[{"_id":"1","status":"booked","pickupDate":"2024-01-01T00:00:00Z"}]}`))

	assert.Equal(t, OutcomeLoaded, res.Outcome)
	assert.Equal(t, 1, res.Count)
	snap := s.Snapshot()
	assert.Equal(t, StatusLoaded, snap.Status)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "1", snap.Items[0].ID)
	assert.Equal(t, "booked", snap.Items[0].Fields["status"])
	pickup, ok := snap.Items[0].Time("pickupDate")
	require.True(t, ok)
	assert.Equal(t, 2024, pickup.Year())
	assert.Equal(t, ids(snap.Items), ids(snap.View))
}

func TestLoad_ShapeMismatchIsEmptyNotError(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()

	for _, body := range []string{`{"count":3}`, `null`, `"oops"`, ``, `<html>`} {
		res := s.Load(context.Background(), static(body))
		assert.Equal(t, OutcomeEmpty, res.Outcome, body)
		assert.NoError(t, res.Err)
		assert.Equal(t, StatusLoaded, s.Status())
		assert.Empty(t, s.Items())
	}
}

func TestLoad_FailureKeepsItems(t *testing.T) {
	rec := newFakeRecorder()
	s := New(vehicleSchema, WithRecorder(rec))
	defer s.Close()

	require.Equal(t, OutcomeLoaded, s.Load(context.Background(), static(`[{"_id":"a"},{"_id":"b"}]`)).Outcome)
	before := s.Items()

	res := s.Load(context.Background(), failing(&client.APIError{StatusCode: 500, Message: "database down"}))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "database down", res.Message)

	snap := s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "database down", snap.Err)
	require.Len(t, snap.Items, 2)
	assert.Same(t, before[0], snap.Items[0])

	res = s.Load(context.Background(), failing(errors.New("boom")))
	assert.Equal(t, "failed to load vehicles", res.Message)

	res = s.Load(context.Background(), failing(client.ErrNetwork))
	assert.Equal(t, "network error: the server could not be reached", res.Message)

	require.Equal(t, OutcomeLoaded, s.Load(context.Background(), static(`[{"_id":"c"}]`)).Outcome)
	assert.Empty(t, s.Snapshot().Err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 2, rec.loads["loaded"])
	assert.Equal(t, 3, rec.loads["failed"])
}

func TestLoad_FetcherPanicIsRecovered(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()

	res := s.Load(context.Background(), func(context.Context) ([]byte, error) { panic("bad fetcher") })
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
	assert.Equal(t, StatusError, s.Status())
}

func TestLoad_Timeout(t *testing.T) {
	s := New(vehicleSchema, WithLoadTimeout(20*time.Millisecond))
	defer s.Close()

	res := s.Load(context.Background(), func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestLoad_StaleAnswerDiscarded(t *testing.T) {
	rec := newFakeRecorder()
	s := New(vehicleSchema, WithRecorder(rec))
	defer s.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan LoadResult)
	go func() {
		done <- s.Load(context.Background(), func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte(`[{"_id":"old"}]`), nil
		})
	}()
	<-started

	newer := s.Load(context.Background(), static(`[{"_id":"new"}]`))
	require.Equal(t, OutcomeLoaded, newer.Outcome)

	close(release)
	older := <-done
	assert.Equal(t, OutcomeDiscarded, older.Outcome)
	assert.Equal(t, []string{"new"}, ids(s.Items()))
	assert.Equal(t, StatusLoaded, s.Status())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.stale)
}

func TestClose_DropsLateAnswer(t *testing.T) {
	s := New(vehicleSchema)

	var notified atomic.Int32
	s.Subscribe(func(Snapshot) { notified.Add(1) })

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan LoadResult)
	go func() {
		done <- s.Load(context.Background(), func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte(`[{"_id":"late"}]`), nil
		})
	}()
	<-started
	loadingNotifications := notified.Load()

	s.Close()
	close(release)
	res := <-done

	assert.Equal(t, OutcomeDiscarded, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrStoreClosed)
	assert.Empty(t, s.Items())
	assert.Equal(t, loadingNotifications, notified.Load())
	assert.True(t, s.Closed())

	res = s.Load(context.Background(), static(`[]`))
	assert.ErrorIs(t, res.Err, ErrStoreClosed)
	s.Close()
}

func TestClose_CancelsFetchContext(t *testing.T) {
	s := New(vehicleSchema)

	started := make(chan struct{})
	done := make(chan LoadResult)
	go func() {
		done <- s.Load(context.Background(), func(ctx context.Context) ([]byte, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
	}()
	<-started
	s.Close()

	select {
	case res := <-done:
		assert.Equal(t, OutcomeDiscarded, res.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not cancelled by Close")
	}
	<-s.Done()
}

func TestSubscribe(t *testing.T) {
	s := New(vehicleSchema)
	defer s.Close()

	var mu sync.Mutex
	var statuses []Status
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, snap.Status)
	})
	s.Subscribe(func(Snapshot) { panic("subscriber bug") })

	s.Load(context.Background(), static(`[{"_id":"a"}]`))
	unsubscribe()
	s.Load(context.Background(), static(`[{"_id":"b"}]`))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusLoading, StatusLoaded}, statuses)
}

func TestLoad_PublishesToContainer(t *testing.T) {
	c := state.NewContainer(nil)
	s := New(vehicleSchema, WithContainer(c))
	defer s.Close()

	s.Load(context.Background(), static(`{"vehicles":[{"_id":"a"},{"_id":"b"}]}`))
	assert.Equal(t, []string{"a", "b"}, ids(c.Select("vehicles")))

	s.Load(context.Background(), failing(errors.New("down")))
	assert.Equal(t, []string{"a", "b"}, ids(c.Select("vehicles")))
}

func TestLoad_AuthFailureHook(t *testing.T) {
	var hookErr error
	s := New(vehicleSchema, OnAuthFailure(func(err error) { hookErr = err }))
	defer s.Close()

	res := s.Load(context.Background(), failing(&client.APIError{StatusCode: 403}))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, client.IsAuthFailure(hookErr))
	assert.Equal(t, "failed to load vehicles", res.Message)
}
