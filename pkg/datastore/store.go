package datastore

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
	"github.com/elvisfernandes/ng-dfservice/pkg/transport"
)

// Gateway is the part of transport.Gateway a Store needs.
type Gateway interface {
	Fetch(ctx context.Context, loc *resource.Locator) (*transport.Response, error)
	Create(ctx context.Context, loc *resource.Locator, rec resource.Record) (*transport.Response, error)
	Replace(ctx context.Context, loc *resource.Locator, rec resource.Record) (*transport.Response, error)
	Remove(ctx context.Context, loc *resource.Locator, rec resource.Record) (*transport.Response, error)
}

var _ Gateway = (*transport.Gateway)(nil)

// Factory returns a new, empty record ready to be populated.
type Factory[T resource.Record] func() T

// Outcome describes what an operation did to the local collection.
type Outcome int

const (
	// OutcomeApplied means the reply was reconciled and a new snapshot was
	// published.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means a precondition did not hold and nothing was sent:
	// Create on a record that already has an id, Update or Delete on one
	// without.
	OutcomeSkipped
	// OutcomeIgnored means the server replied with success but the reply did
	// not have the expected shape, so the snapshot was left alone.
	OutcomeIgnored
	// OutcomeFailed means the request itself failed; the error says why.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Config configures a Store.
type Config[T resource.Record] struct {
	Gateway Gateway

	// Locator addresses the collection. Its Params are used by RetrieveAll
	// and may be changed between calls.
	Locator *resource.Locator

	// Factory builds the records decoded from server replies.
	Factory Factory[T]

	Logger hclog.Logger
}

// Store mirrors one remote collection locally. Reads go through Snapshot,
// LookupByID and Subscribe; writes go to the server first and are reconciled
// into a new snapshot only once the reply has been interpreted.
//
// Reconciliation runs under a single lock against the snapshot current at
// the time the reply arrives, so overlapping operations never lose each
// other's changes.
type Store[T resource.Record] struct {
	gw        Gateway
	locator   *resource.Locator
	newRecord Factory[T]
	logger    hclog.Logger

	mu          sync.Mutex
	current     Snapshot[T]
	subscribers map[chan Snapshot[T]]struct{}
}

// New creates a Store with an empty snapshot.
func New[T resource.Record](cfg Config[T]) (*Store[T], error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.Locator == nil {
		return nil, fmt.Errorf("locator is required")
	}
	if err := cfg.Locator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid locator: %w", err)
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("record factory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Store[T]{
		gw:          cfg.Gateway,
		locator:     cfg.Locator,
		newRecord:   cfg.Factory,
		logger:      cfg.Logger.Named("datastore").With("resource", cfg.Locator.Path()),
		subscribers: make(map[chan Snapshot[T]]struct{}),
	}, nil
}

// Locator returns the collection address. Changing its Params affects later
// RetrieveAll calls.
func (s *Store[T]) Locator() *resource.Locator {
	return s.locator
}

// Snapshot returns the current snapshot.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel that immediately receives the current snapshot
// and then every snapshot published afterwards. A subscriber that falls
// behind only sees the latest snapshot. Call the returned function to stop
// receiving; in-flight operations are not affected.
func (s *Store[T]) Subscribe() (<-chan Snapshot[T], func()) {
	ch := make(chan Snapshot[T], 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.current
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// LoadInitialData fills the store for the first time.
func (s *Store[T]) LoadInitialData(ctx context.Context) (Outcome, error) {
	return s.RetrieveAll(ctx)
}

// Create sends rec to the server and, once it has an id, fetches the stored
// version with RetrieveByID so the snapshot holds the server's canonical
// representation rather than the create reply.
func (s *Store[T]) Create(ctx context.Context, rec T) (Outcome, error) {
	if rec.RecordID() != 0 {
		s.logger.Debug("create skipped, record already has an id", "id", rec.RecordID())
		return OutcomeSkipped, nil
	}

	resp, err := s.gw.Create(ctx, s.locator, rec)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("error creating record: %w", err)
	}

	items, ok := s.expect(resp, 1)
	if !ok {
		return OutcomeIgnored, nil
	}
	id, err := resource.IDOf(items[0])
	if err != nil {
		s.logger.Debug("ignoring create reply", "error", err)
		return OutcomeIgnored, nil
	}

	return s.RetrieveByID(ctx, id)
}

// RetrieveAll fetches records with the locator's current parameters and
// appends them. Records already present are not deduplicated; use Reload to
// start from an empty collection.
func (s *Store[T]) RetrieveAll(ctx context.Context) (Outcome, error) {
	resp, err := s.gw.Fetch(ctx, s.locator)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("error retrieving records: %w", err)
	}

	items, ok := s.expect(resp, -1)
	if !ok {
		return OutcomeIgnored, nil
	}

	fetched := make([]T, 0, len(items))
	for _, raw := range items {
		rec, err := s.decode(raw)
		if err != nil {
			s.logger.Warn("ignoring retrieve reply", "error", err)
			return OutcomeIgnored, nil
		}
		fetched = append(fetched, rec)
	}

	s.apply(func(cur []T) ([]T, bool) {
		next := make([]T, 0, len(cur)+len(fetched))
		next = append(next, cur...)
		return append(next, fetched...), true
	})
	s.logger.Debug("retrieved records", "count", len(fetched))
	return OutcomeApplied, nil
}

// RetrieveByID fetches a single record and appends it, or replaces the entry
// already holding that id. The ids parameter is narrowed on a copy of the
// locator, so the store's locator is never modified.
func (s *Store[T]) RetrieveByID(ctx context.Context, id int64) (Outcome, error) {
	loc := s.locator.Clone()
	loc.Params.IDs = strconv.FormatInt(id, 10)

	resp, err := s.gw.Fetch(ctx, loc)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("error retrieving record %d: %w", id, err)
	}

	items, ok := s.expect(resp, 1)
	if !ok {
		return OutcomeIgnored, nil
	}
	rec, err := s.decode(items[0])
	if err != nil {
		s.logger.Warn("ignoring retrieve reply", "id", id, "error", err)
		return OutcomeIgnored, nil
	}
	if rec.RecordID() != id {
		s.logger.Debug("ignoring retrieve reply for another record", "id", id, "got", rec.RecordID())
		return OutcomeIgnored, nil
	}

	s.apply(func(cur []T) ([]T, bool) {
		next := append([]T(nil), cur...)
		if i := indexOf(next, id); i >= 0 {
			next[i] = rec
			return next, true
		}
		return append(next, rec), true
	})
	return OutcomeApplied, nil
}

// Reload empties the collection and retrieves it again.
func (s *Store[T]) Reload(ctx context.Context) (Outcome, error) {
	s.apply(func([]T) ([]T, bool) {
		return nil, true
	})
	return s.RetrieveAll(ctx)
}

// LookupByID returns the record with id from the current snapshot.
func (s *Store[T]) LookupByID(id int64) (T, bool) {
	snap := s.Snapshot()
	if i := snap.Index(id); i >= 0 {
		return snap.At(i), true
	}
	var zero T
	return zero, false
}

// Update sends rec to the server. When the reply confirms rec's id, the entry
// with that id is replaced by rec, keeping its position.
//
// The snapshot holds rec itself, not a copy. For pointer and map record types
// the caller must not modify rec after passing it to Update, or published
// snapshots change with it.
func (s *Store[T]) Update(ctx context.Context, rec T) (Outcome, error) {
	id := rec.RecordID()
	if id == 0 {
		s.logger.Debug("update skipped, record has no id")
		return OutcomeSkipped, nil
	}

	resp, err := s.gw.Replace(ctx, s.locator, rec)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("error updating record %d: %w", id, err)
	}

	if !s.confirms(resp, id) {
		return OutcomeIgnored, nil
	}

	if !s.apply(func(cur []T) ([]T, bool) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, false
		}
		next := append([]T(nil), cur...)
		next[i] = rec
		return next, true
	}) {
		s.logger.Debug("updated record is not in the local collection", "id", id)
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

// Delete removes rec on the server, then drops it from the collection while
// keeping the order of the remaining records.
func (s *Store[T]) Delete(ctx context.Context, rec T) (Outcome, error) {
	id := rec.RecordID()
	if id == 0 {
		s.logger.Debug("delete skipped, record has no id")
		return OutcomeSkipped, nil
	}

	resp, err := s.gw.Remove(ctx, s.locator, rec)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("error deleting record %d: %w", id, err)
	}

	items, ok := s.expect(resp, 1)
	if !ok {
		return OutcomeIgnored, nil
	}
	deleted, err := resource.IDOf(items[0])
	if err != nil {
		s.logger.Debug("ignoring delete reply", "error", err)
		return OutcomeIgnored, nil
	}

	if !s.apply(func(cur []T) ([]T, bool) {
		i := indexOf(cur, deleted)
		if i < 0 {
			return nil, false
		}
		next := make([]T, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...), true
	}) {
		s.logger.Debug("deleted record is not in the local collection", "id", deleted)
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

// expect decodes the reply envelope and checks it holds want items, or any
// number of items when want is negative.
func (s *Store[T]) expect(resp *transport.Response, want int) ([]map[string]any, bool) {
	env, err := resp.Envelope()
	if err != nil {
		s.logger.Debug("ignoring reply", "status", resp.StatusCode, "error", err)
		return nil, false
	}
	if want >= 0 && len(env.Resource) != want {
		s.logger.Debug("ignoring reply", "status", resp.StatusCode, "want", want, "got", len(env.Resource))
		return nil, false
	}
	return env.Resource, true
}

// confirms reports whether the reply is a single-item envelope for id.
func (s *Store[T]) confirms(resp *transport.Response, id int64) bool {
	items, ok := s.expect(resp, 1)
	if !ok {
		return false
	}
	got, err := resource.IDOf(items[0])
	if err != nil || got != id {
		s.logger.Debug("reply does not confirm record", "id", id, "got", got)
		return false
	}
	return true
}

func (s *Store[T]) decode(raw map[string]any) (T, error) {
	rec := s.newRecord()
	if err := rec.PopulateFrom(raw); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

// apply runs fn against the current records and, if it reports a change,
// publishes the result as the next snapshot. It reports whether a snapshot
// was published.
func (s *Store[T]) apply(fn func(cur []T) ([]T, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(s.current.records)
	if !changed {
		return false
	}

	s.current = Snapshot[T]{
		version: s.current.version + 1,
		records: next,
	}

	for ch := range s.subscribers {
		select {
		case ch <- s.current:
		default:
			// Replace the stale snapshot the subscriber hasn't read yet.
			select {
			case <-ch:
			default:
			}
			ch <- s.current
		}
	}
	return true
}
