package liststore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/romdo/go-debounce"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/signal"
)

// Refetcher reloads a store whenever its signal is raised. At most one
// reload runs at a time; raises during a reload are absorbed by it.
type Refetcher struct {
	store  *Store
	fetch  Fetcher
	signal *signal.Signal
	logger *zap.Logger

	debounceWait time.Duration
	maxWait      time.Duration

	group singleflight.Group
	runs  atomic.Int64
}

// RefetchOption configures a Refetcher.
type RefetchOption func(*Refetcher)

// WithDebounce delays reloads until the signal has been quiet for wait,
// but no longer than maxWait after the first raise. Zero maxWait means no cap.
func WithDebounce(wait, maxWait time.Duration) RefetchOption {
	return func(r *Refetcher) {
		r.debounceWait = wait
		r.maxWait = maxWait
	}
}

// WithRefetchLogger sets the refetcher logger.
func WithRefetchLogger(l *zap.Logger) RefetchOption {
	return func(r *Refetcher) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRefetcher binds store, fetch and sig.
func NewRefetcher(store *Store, fetch Fetcher, sig *signal.Signal, opts ...RefetchOption) *Refetcher {
	r := &Refetcher{
		store:  store,
		fetch:  fetch,
		signal: sig,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("refetch").With(zap.String("resource", store.Name()), zap.String("signal", sig.Name()))
	return r
}

// Refetch reloads the store and resets the signal. A call made while a
// reload is running waits for that reload and shares its result.
func (r *Refetcher) Refetch(ctx context.Context) LoadResult {
	ch := r.group.DoChan(r.store.Name(), func() (any, error) {
		r.runs.Add(1)
		loadCtx := context.WithoutCancel(ctx)
		res := r.store.Load(loadCtx, r.fetch)
		if errors.Is(res.Err, ErrLoadPredatesCommit) {
			res = r.store.Load(loadCtx, r.fetch)
		}
		r.signal.Reset()
		r.logger.Debug("refetch finished", zap.String("outcome", string(res.Outcome)), zap.Int("items", res.Count))
		return res, nil
	})

	select {
	case res := <-ch:
		if lr, ok := res.Val.(LoadResult); ok {
			return lr
		}
		return LoadResult{Outcome: OutcomeFailed, Err: res.Err}
	case <-ctx.Done():
		return LoadResult{Outcome: OutcomeDiscarded, Message: "refetch abandoned", Err: ctx.Err()}
	}
}

// Runs returns how many reloads were started.
func (r *Refetcher) Runs() int64 {
	return r.runs.Load()
}

// Run watches the signal until ctx is done or the store is closed. A signal
// already raised when Run starts triggers a reload immediately.
func (r *Refetcher) Run(ctx context.Context) error {
	notify, stop := r.signal.Notify()
	defer stop()

	trigger := func() { r.Refetch(ctx) }
	if r.debounceWait > 0 {
		var debounced, cancel func()
		if r.maxWait > 0 {
			debounced, cancel = debounce.NewWithMaxWait(r.debounceWait, r.maxWait, trigger)
		} else {
			debounced, cancel = debounce.New(r.debounceWait, trigger)
		}
		defer cancel()
		trigger = debounced
	}

	if r.signal.Raised() {
		trigger()
	}

	r.logger.Debug("watching signal")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.store.Done():
			return ErrStoreClosed
		case <-notify:
			trigger()
		}
	}
}
