package liststore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
)

// MessageUnauthorized is shown when a mutation fails with 401/403.
const MessageUnauthorized = "session expired or unauthorized"

// LocalUpdate returns the items after applying a change to targetID. It
// receives a copy of the slice and must not modify the items themselves;
// replace them instead (see normalize.Item.With).
type LocalUpdate func(items []*normalize.Item, targetID string) []*normalize.Item

// RemoteCall performs the server side of a mutation.
type RemoteCall func(ctx context.Context) error

// MutationOutcome classifies a finished mutation.
type MutationOutcome string

const (
	// MutationCommitted means the remote call succeeded.
	MutationCommitted MutationOutcome = "committed"
	// MutationRolledBack means the remote call failed and the local change was reverted.
	MutationRolledBack MutationOutcome = "rolled_back"
	// MutationRejected means no remote call was made.
	MutationRejected MutationOutcome = "rejected"
)

// MutationResult is the typed result of Mutate.
type MutationResult struct {
	Outcome MutationOutcome
	Message string
	Err     error
	// Refetch holds the reload result when WithRefetch was given and the
	// remote call succeeded.
	Refetch *LoadResult
}

// MutateOption configures one Mutate call.
type MutateOption func(*mutateConfig)

type mutateConfig struct {
	refetch Fetcher
}

// WithRefetch reloads the list with fetch after a successful remote call,
// instead of keeping the optimistic state.
func WithRefetch(fetch Fetcher) MutateOption {
	return func(c *mutateConfig) { c.refetch = fetch }
}

// RemoveByID removes the target.
func RemoveByID() LocalUpdate {
	return func(items []*normalize.Item, targetID string) []*normalize.Item {
		out := items[:0]
		for _, item := range items {
			if item.ID != targetID {
				out = append(out, item)
			}
		}
		return out
	}
}

// SetField replaces the target with a copy whose field holds value.
func SetField(field string, value any) LocalUpdate {
	return func(items []*normalize.Item, targetID string) []*normalize.Item {
		for i, item := range items {
			if item.ID == targetID {
				items[i] = item.With(field, value)
			}
		}
		return items
	}
}

// Mutate applies local immediately, then awaits remote. When remote fails the
// change is reverted: the pre-mutation items are restored as they were when
// nothing else touched the list meanwhile, otherwise only the target is put
// back. A load applied while remote was pending wins over the rollback.
// Only one mutation per targetID may be pending; others are rejected.
func (s *Store) Mutate(ctx context.Context, targetID string, local LocalUpdate, remote RemoteCall, opts ...MutateOption) MutationResult {
	var cfg mutateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := s.tracer.Start(ctx, "liststore.Mutate", trace.WithAttributes(
		attribute.String("resource", s.name),
		attribute.String("target_id", targetID),
	))
	defer span.End()
	log := logger.WithTraceContext(ctx, s.logger).With(zap.String("target_id", targetID))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.rejected(span, ErrStoreClosed, "store closed")
	}
	if _, busy := s.pending[targetID]; busy {
		s.mu.Unlock()
		log.Debug("mutation rejected, another one is pending")
		return s.rejected(span, ErrMutationInFlight, fmt.Sprintf("%s %s is already being updated", s.name, targetID))
	}
	s.pending[targetID] = struct{}{}

	before := s.items
	index := indexOf(before, targetID)
	var original *normalize.Item
	if index >= 0 {
		original = before[index]
	}
	epoch := s.epoch

	s.items = local(append([]*normalize.Item(nil), before...), targetID)
	s.version++
	version := s.version
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	remoteCtx, cancel := s.bind(ctx, s.loadTimeout)
	err := s.callRemote(remoteCtx, remote)
	cancel()

	s.mu.Lock()
	delete(s.pending, targetID)
	if s.closed {
		s.mu.Unlock()
		if err != nil {
			return MutationResult{Outcome: MutationRolledBack, Message: s.mutationMessage(err), Err: err}
		}
		return MutationResult{Outcome: MutationCommitted}
	}

	if err != nil {
		switch {
		case s.epoch != epoch:
			log.Debug("list reloaded while mutation was pending, keeping server data")
		case s.version == version:
			s.items = before
		default:
			s.items = revert(s.items, targetID, original, index)
		}
		s.version++
		s.mutationErr = s.mutationMessage(err)
		s.recomputeLocked()
		snap = s.snapshotLocked()
		s.mu.Unlock()

		s.recorder.MutationFinished(s.name, string(MutationRolledBack))
		span.SetAttributes(attribute.String("outcome", string(MutationRolledBack)))
		span.RecordError(err)
		span.SetStatus(codes.Error, snap.MutationErr)
		log.Warn("mutation failed, rolled back", zap.Error(err))
		s.authFailure(err)
		s.publish(snap)
		return MutationResult{Outcome: MutationRolledBack, Message: snap.MutationErr, Err: err}
	}

	s.mutationErr = ""
	s.commits++
	committed := s.items
	seq := s.stampLocked()
	s.mu.Unlock()

	s.recorder.MutationFinished(s.name, string(MutationCommitted))
	span.SetAttributes(attribute.String("outcome", string(MutationCommitted)))
	log.Debug("mutation committed")
	s.share(committed, seq)

	result := MutationResult{Outcome: MutationCommitted}
	if cfg.refetch != nil {
		res := s.Load(ctx, cfg.refetch)
		result.Refetch = &res
	}
	return result
}

func (s *Store) rejected(span trace.Span, err error, msg string) MutationResult {
	s.recorder.MutationFinished(s.name, string(MutationRejected))
	span.SetAttributes(attribute.String("outcome", string(MutationRejected)))
	return MutationResult{Outcome: MutationRejected, Message: msg, Err: err}
}

func (s *Store) callRemote(ctx context.Context, remote RemoteCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("remote call panicked", zap.Any("panic", r))
			err = fmt.Errorf("liststore: remote call panicked: %v", r)
		}
	}()
	return remote(ctx)
}

func (s *Store) mutationMessage(err error) string {
	if client.IsAuthFailure(err) {
		return MessageUnauthorized
	}
	return fmt.Sprintf("could not update %s: changes were reverted", s.name)
}

func indexOf(items []*normalize.Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// revert puts original back in place of the target, re-inserting it near its
// old position when it was removed.
func revert(items []*normalize.Item, id string, original *normalize.Item, index int) []*normalize.Item {
	if original == nil {
		return items
	}
	out := append([]*normalize.Item(nil), items...)
	if i := indexOf(out, id); i >= 0 {
		out[i] = original
		return out
	}
	if index > len(out) {
		index = len(out)
	}
	return append(out[:index], append([]*normalize.Item{original}, out[index:]...)...)
}
