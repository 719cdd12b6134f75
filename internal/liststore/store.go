// Package liststore holds normalized resource lists in observable stores with
// a derived filtered and sorted view, optimistic mutations with rollback and
// signal-triggered refetching.
package liststore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/envelope"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/state"
)

const tracerName = "rentaride.liststore"

// DefaultLoadTimeout bounds a load when no timeout is configured.
const DefaultLoadTimeout = 20 * time.Second

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("liststore: store closed")
	// ErrMutationInFlight rejects a mutation whose target already has one pending.
	ErrMutationInFlight = errors.New("liststore: mutation already in flight")
	// ErrLoadPredatesCommit marks a load answer fetched before a mutation
	// committed; it may still hold the record the mutation changed.
	ErrLoadPredatesCommit = errors.New("liststore: load predates a committed mutation")
)

// Status is the lifecycle state of a store.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusError   Status = "error"
)

// Outcome classifies a finished load.
type Outcome string

const (
	// OutcomeLoaded means at least one item was loaded.
	OutcomeLoaded Outcome = "loaded"
	// OutcomeEmpty means the load succeeded with zero items, including
	// answers whose shape matched no known envelope.
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailed means the fetch failed; previous items were kept.
	OutcomeFailed Outcome = "failed"
	// OutcomeDiscarded means a newer load started before this one finished,
	// or the store was closed, and the answer was dropped.
	OutcomeDiscarded Outcome = "discarded"
)

// Fetcher returns a raw list payload.
type Fetcher func(ctx context.Context) ([]byte, error)

// LoadResult is the typed result of Load.
type LoadResult struct {
	Outcome Outcome
	Count   int
	Message string
	Err     error
}

// Recorder receives store events for metrics.
type Recorder interface {
	LoadFinished(resource, outcome string, duration time.Duration, items int)
	MutationFinished(resource, outcome string)
	StaleResponse(resource string)
}

type nopRecorder struct{}

func (nopRecorder) LoadFinished(string, string, time.Duration, int) {}
func (nopRecorder) MutationFinished(string, string)                 {}
func (nopRecorder) StaleResponse(string)                            {}

// Snapshot is a consistent copy of the store state. The items it references
// are shared with the store and must not be modified.
type Snapshot struct {
	Name   string
	Status Status
	// Err is the load error message, set only when Status is StatusError.
	Err string
	// MutationErr is the message of the last rolled back mutation.
	MutationErr string
	Items       []*normalize.Item
	View        []*normalize.Item
}

// Option configures a Store.
type Option func(*Store)

// WithPreferredKeys sets the envelope keys tried when unwrapping payloads.
func WithPreferredKeys(keys ...string) Option {
	return func(s *Store) { s.keys = keys }
}

// WithLoadTimeout bounds every load.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTracer sets the tracer. The global provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithContainer publishes successful loads and committed mutations into c.
func WithContainer(c *state.Container) Option {
	return func(s *Store) { s.container = c }
}

// OnAuthFailure registers fn, called when a load or mutation fails with 401/403.
func OnAuthFailure(fn func(error)) Option {
	return func(s *Store) { s.onAuthFailure = fn }
}

// Store is the observable collection of one resource.
// It is safe for concurrent use.
type Store struct {
	name        string
	schema      normalize.Schema
	keys        []string
	loadTimeout time.Duration

	logger        *zap.Logger
	recorder      Recorder
	tracer        trace.Tracer
	container     *state.Container
	onAuthFailure func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	status      Status
	errMsg      string
	mutationErr string
	items       []*normalize.Item
	view        []*normalize.Item
	filters     map[string]Predicate
	sort        Comparator
	closed      bool

	// gen counts started loads; only the latest one may apply its answer.
	gen uint64
	// epoch counts applied loads.
	epoch uint64
	// version changes whenever items change.
	version uint64
	// commits counts committed mutations; loads fetched before a commit
	// are discarded.
	commits uint64
	pending map[string]struct{}

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates an idle store for the resource described by schema.
func New(schema normalize.Schema, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		name:        schema.Resource,
		schema:      schema,
		keys:        envelope.DefaultKeys(schema.Resource),
		loadTimeout: DefaultLoadTimeout,
		logger:      zap.NewNop(),
		recorder:    nopRecorder{},
		tracer:      otel.Tracer(tracerName),
		ctx:         ctx,
		cancel:      cancel,
		status:      StatusIdle,
		items:       []*normalize.Item{},
		view:        []*normalize.Item{},
		filters:     make(map[string]Predicate),
		pending:     make(map[string]struct{}),
		subs:        make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("liststore").With(zap.String("resource", s.name))
	return s
}

// Name returns the resource name.
func (s *Store) Name() string {
	return s.name
}

// Load fetches, unwraps and normalizes the list and replaces the items.
// On failure the previous items are kept and the status becomes error.
// Answers of loads superseded by a newer Load, fetched before a mutation
// committed, or arriving after Close, are discarded.
func (s *Store) Load(ctx context.Context, fetch Fetcher) LoadResult {
	ctx, span := s.tracer.Start(ctx, "liststore.Load", trace.WithAttributes(
		attribute.String("resource", s.name),
	))
	defer span.End()
	log := logger.WithTraceContext(ctx, s.logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return LoadResult{Outcome: OutcomeDiscarded, Message: "store closed", Err: ErrStoreClosed}
	}
	s.gen++
	gen := s.gen
	commits := s.commits
	s.status = StatusLoading
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	ctx, cancel := s.bind(ctx, s.loadTimeout)
	defer cancel()

	start := time.Now()
	items, err := s.fetch(ctx, fetch)
	duration := time.Since(start)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Debug("load finished after close, dropped")
		span.SetAttributes(attribute.String("outcome", string(OutcomeDiscarded)))
		return LoadResult{Outcome: OutcomeDiscarded, Message: "store closed", Err: ErrStoreClosed}
	}
	if gen != s.gen {
		s.mu.Unlock()
		s.recorder.StaleResponse(s.name)
		log.Debug("stale load answer discarded", zap.Uint64("generation", gen))
		span.SetAttributes(attribute.String("outcome", string(OutcomeDiscarded)), attribute.Bool("stale", true))
		return LoadResult{Outcome: OutcomeDiscarded, Message: "superseded by a newer load"}
	}
	if err == nil && commits != s.commits {
		s.settleLocked()
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.recorder.StaleResponse(s.name)
		log.Debug("load answer predates a committed mutation, discarded")
		span.SetAttributes(attribute.String("outcome", string(OutcomeDiscarded)), attribute.Bool("stale", true))
		s.publish(snap)
		return LoadResult{Outcome: OutcomeDiscarded, Message: "superseded by a committed change", Err: ErrLoadPredatesCommit}
	}

	var result LoadResult
	var seq uint64
	if err != nil {
		msg := client.UserMessage(err, fmt.Sprintf("failed to load %s", s.name))
		s.status = StatusError
		s.errMsg = msg
		result = LoadResult{Outcome: OutcomeFailed, Message: msg, Err: err, Count: len(s.items)}
	} else {
		s.items = items
		s.epoch++
		s.version++
		seq = s.stampLocked()
		s.status = StatusLoaded
		s.errMsg = ""
		s.recomputeLocked()
		result = LoadResult{Outcome: OutcomeLoaded, Count: len(items)}
		if len(items) == 0 {
			result.Outcome = OutcomeEmpty
		}
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.recorder.LoadFinished(s.name, string(result.Outcome), duration, result.Count)
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)), attribute.Int("items", result.Count))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result.Message)
		log.Warn("load failed", zap.Error(err), zap.Duration("duration", duration))
		s.authFailure(err)
	} else {
		log.Debug("load finished",
			zap.String("outcome", string(result.Outcome)),
			zap.Int("items", result.Count),
			zap.Duration("duration", duration),
		)
		s.share(snap.Items, seq)
	}
	s.publish(snap)
	return result
}

// fetch runs the fetcher, recovering panics, and normalizes its answer.
func (s *Store) fetch(ctx context.Context, fetch Fetcher) (items []*normalize.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fetcher panicked", zap.Any("panic", r))
			items, err = nil, fmt.Errorf("liststore: fetcher panicked: %v", r)
		}
	}()

	raw, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	return s.schema.NormalizeAll(envelope.Unwrap(raw, s.keys)), nil
}

// bind derives a context that ends with ctx, the store, or after timeout.
func (s *Store) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Items returns the current items in server order.
func (s *Store) Items() []*normalize.Item {
	return s.Snapshot().Items
}

// View returns the current filtered and sorted items.
func (s *Store) View() []*normalize.Item {
	return s.Snapshot().View
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Name:        s.name,
		Status:      s.status,
		MutationErr: s.mutationErr,
		Items:       append([]*normalize.Item(nil), s.items...),
		View:        append([]*normalize.Item(nil), s.view...),
	}
	if s.status == StatusError {
		snap.Err = s.errMsg
	}
	return snap
}

// Subscribe registers fn, called with a snapshot after every change.
// Callbacks run outside the store lock and may call back into the store.
// The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(snap Snapshot) {
	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		s.call(fn, snap)
	}
}

func (s *Store) call(fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn(snap)
}

// stampLocked orders the next container write of s. Callers hold s.mu.
func (s *Store) stampLocked() uint64 {
	if s.container == nil {
		return 0
	}
	return s.container.Stamp()
}

// settleLocked ends a loading state whose answer was dropped.
func (s *Store) settleLocked() {
	if s.status != StatusLoading {
		return
	}
	if s.errMsg != "" {
		s.status = StatusError
		return
	}
	s.status = StatusLoaded
}

// share replaces the container copy of the list with items. Writes stamped
// before one the container already holds are dropped.
func (s *Store) share(items []*normalize.Item, seq uint64) {
	if s.container == nil {
		return
	}
	err := s.container.Dispatch(state.Replace(s.name, items).At(seq))
	switch {
	case errors.Is(err, state.ErrStaleAction):
		s.logger.Debug("container already holds a newer list", zap.Uint64("seq", seq))
	case err != nil:
		s.logger.Warn("publishing to state container failed", zap.Error(err))
	}
}

func (s *Store) authFailure(err error) {
	if s.onAuthFailure != nil && client.IsAuthFailure(err) {
		s.onAuthFailure(err)
	}
}

// Close cancels in-flight loads and mutations. Answers arriving afterwards
// are dropped and subscribers are no longer notified.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	s.subsMu.Lock()
	s.subs = make(map[int]func(Snapshot))
	s.subsMu.Unlock()
	s.logger.Debug("store closed")
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed when the store is closed.
func (s *Store) Done() <-chan struct{} {
	return s.ctx.Done()
}
