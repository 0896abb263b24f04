/*
engine.go - Persistence engine for the household collections

PURPOSE:
  The single component allowed to touch durable storage. It wraps a
  household.Store with the operations the rest of the application needs:
  first-run seeding, whole-snapshot reads and writes, capacity diagnostics,
  retention pruning, and backup/restore.

OPERATIONS:
  Initialize:         Seed the default catalog into an empty store (idempotent)
  ReadAll:            Read all five collections concurrently
  ReplaceAll:         Clear + insert every collection in ONE transaction
  CapacityInfo:       Usage/quota report, never fails (see capacity.go)
  PruneOlderThan:     Delete records older than N days
  Export/Import:      Interchange JSON (see interchange.go)
  RecordsByChild:     Child history, optional day window
  UnreadMessageCount: Unread message badge count

ATOMICITY:
  ReplaceAll and ImportSnapshot run inside Store.WithTx. A failure at any
  collection rolls back all five; readers see either the old snapshot or
  the new one in full.

ERRORS:
  Storage failures come back as wrapped errors (errors.Is against the
  household sentinels). Nothing here panics into callers.

SEE ALSO:
  - household/store.go: Store interface
  - state/facade.go: Load/save entry point built on the engine
*/
package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushbq/Familypoints-Pages/household"
)

// Engine owns the durable store handle. Construct one per process in the
// composition root and pass it down.
type Engine struct {
	store     household.Store
	estimator household.Estimator
	seed      household.AppState
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEstimator overrides the capacity estimator. By default the store is
// used when it implements household.Estimator.
func WithEstimator(est household.Estimator) Option {
	return func(e *Engine) { e.estimator = est }
}

// WithClock replaces time.Now for retention and export timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed replaces the catalog written by Initialize.
func WithSeed(seed household.AppState) Option {
	return func(e *Engine) { e.seed = seed }
}

// New creates an engine over store.
func New(store household.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		seed:   household.DefaultCatalog(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	if est, ok := store.(household.Estimator); ok {
		e.estimator = est
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "persistence"))
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() household.Store {
	return e.store
}

// =============================================================================
// INITIALIZE
// =============================================================================

// Initialize writes the seed catalog when the users collection is empty.
// Safe to call on every startup.
func (e *Engine) Initialize(ctx context.Context) error {
	count, err := e.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("initialize: counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	e.logger.Info("seeding default catalog",
		zap.Int("users", len(e.seed.Users)),
		zap.Int("scoreItems", len(e.seed.ScoreItems)),
		zap.Int("rewardItems", len(e.seed.RewardItems)),
	)

	err = e.store.WithTx(ctx, func(tx household.Tx) error {
		if err := tx.InsertUsers(ctx, e.seed.Users); err != nil {
			return &household.CollectionError{Collection: household.CollectionUsers, Op: "seed", Err: err}
		}
		if len(e.seed.ScoreItems) > 0 {
			if err := tx.InsertScoreItems(ctx, e.seed.ScoreItems); err != nil {
				return &household.CollectionError{Collection: household.CollectionScoreItems, Op: "seed", Err: err}
			}
		}
		if len(e.seed.RewardItems) > 0 {
			if err := tx.InsertRewardItems(ctx, e.seed.RewardItems); err != nil {
				return &household.CollectionError{Collection: household.CollectionRewardItems, Op: "seed", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("seeding failed", zap.Error(err))
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// =============================================================================
// SNAPSHOT READ / WRITE
// =============================================================================

// ReadAll returns every collection. The five reads are independent and run
// concurrently.
func (e *Engine) ReadAll(ctx context.Context) (household.AppState, error) {
	var s household.AppState
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		s.Users, err = e.store.ListUsers(gctx)
		return wrapRead(household.CollectionUsers, err)
	})
	g.Go(func() (err error) {
		s.ScoreItems, err = e.store.ListScoreItems(gctx)
		return wrapRead(household.CollectionScoreItems, err)
	})
	g.Go(func() (err error) {
		s.RewardItems, err = e.store.ListRewardItems(gctx)
		return wrapRead(household.CollectionRewardItems, err)
	})
	g.Go(func() (err error) {
		s.Records, err = e.store.ListRecords(gctx)
		return wrapRead(household.CollectionRecords, err)
	})
	g.Go(func() (err error) {
		s.Messages, err = e.store.ListMessages(gctx)
		return wrapRead(household.CollectionMessages, err)
	})

	if err := g.Wait(); err != nil {
		return household.AppState{}, fmt.Errorf("read all: %w", err)
	}
	return s.Normalize(), nil
}

func wrapRead(c household.CollectionName, err error) error {
	if err == nil {
		return nil
	}
	return &household.CollectionError{Collection: c, Op: "read", Err: err}
}

// ReplaceAll writes snapshot as the complete new contents of the store.
// All-or-nothing.
func (e *Engine) ReplaceAll(ctx context.Context, snapshot household.AppState) error {
	err := e.store.WithTx(ctx, func(tx household.Tx) error {
		return household.ReplaceSnapshot(ctx, tx, snapshot)
	})
	if err != nil {
		return fmt.Errorf("replace all: %w", err)
	}
	return nil
}

// =============================================================================
// RETENTION
// =============================================================================

// PruneOlderThan deletes records whose timestamp is before now - days.
// Returns the number deleted. Confirming with the user is the caller's job.
func (e *Engine) PruneOlderThan(ctx context.Context, days int) (int, error) {
	cutoff, err := e.Cutoff(days)
	if err != nil {
		return 0, err
	}
	return e.PruneBefore(ctx, cutoff)
}

// Cutoff returns now - days, the oldest timestamp a prune of days keeps.
func (e *Engine) Cutoff(days int) (household.Timestamp, error) {
	if days <= 0 {
		return 0, fmt.Errorf("prune: %w (got %d)", household.ErrInvalidRetention, days)
	}
	return household.TimestampOf(e.now()).DaysAgo(days), nil
}

// PruneBefore deletes records whose timestamp is before cutoff.
func (e *Engine) PruneBefore(ctx context.Context, cutoff household.Timestamp) (int, error) {
	deleted, err := e.store.PruneRecords(ctx, cutoff)
	if err != nil {
		e.logger.Error("prune failed", zap.Int64("cutoff", int64(cutoff)), zap.Error(err))
		return 0, fmt.Errorf("prune: %w", err)
	}
	if deleted > 0 {
		e.logger.Info("pruned old records", zap.Int("deleted", deleted), zap.Int64("cutoff", int64(cutoff)))
	}
	return deleted, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// RecordsByChild returns childID's records, limited to the last days days
// when days > 0.
func (e *Engine) RecordsByChild(ctx context.Context, childID string, days int) ([]household.ScoreRecord, error) {
	var since household.Timestamp
	if days > 0 {
		since = household.TimestampOf(e.now()).DaysAgo(days)
	}
	records, err := e.store.RecordsByChild(ctx, childID, since)
	if err != nil {
		return nil, fmt.Errorf("records by child %s: %w", childID, err)
	}
	return records, nil
}

// UnreadMessageCount counts unread messages.
func (e *Engine) UnreadMessageCount(ctx context.Context) (int, error) {
	n, err := e.store.CountUnreadMessages(ctx)
	if err != nil {
		return 0, fmt.Errorf("unread messages: %w", err)
	}
	return n, nil
}
