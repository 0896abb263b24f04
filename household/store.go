/*
store.go - Persistence interface for the household collections

PURPOSE:
  Defines the interface between the domain and the durable store. The Store
  exposes per-collection reads, a transactional write scope, and the single
  non-transactional bulk delete used by retention pruning.

KEY INTERFACES:
  Store:     Reads, WithTx, PruneRecords, Close
  Tx:        Clear + bulk Insert per collection, valid only inside WithTx
  Estimator: Optional storage usage/quota reporting

TRANSACTION CONTRACT:
  WithTx runs fn inside one transaction spanning all five collections.
  If fn returns an error, nothing fn did is observable afterwards.
  There is no per-row update: a snapshot is written by clearing a collection
  and inserting its full contents again.

LEDGER CONTRACT:
  Records are never updated. The only deletion path outside WithTx is
  PruneRecords(before), which removes whole entries by age.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: durable SQLite store
  - household/store/memory.go: in-memory store for tests and fallbacks

SEE ALSO:
  - schema.go: Collection descriptors
  - persistence/engine.go: Higher-level operations built on Store
*/
package household

import "context"

// =============================================================================
// STORE - Interface for collection persistence
// =============================================================================

// Store persists the five household collections.
type Store interface {
	// CountUsers returns the number of rows in users. Used for seeding.
	CountUsers(ctx context.Context) (int, error)

	ListUsers(ctx context.Context) ([]User, error)
	ListScoreItems(ctx context.Context) ([]ScoreItem, error)
	ListRewardItems(ctx context.Context) ([]RewardItem, error)
	ListRecords(ctx context.Context) ([]ScoreRecord, error)
	ListMessages(ctx context.Context) ([]SecretMessage, error)

	// RecordsByChild returns a child's records with Timestamp >= since,
	// ordered by timestamp. since == 0 returns the whole history.
	RecordsByChild(ctx context.Context, childID string, since Timestamp) ([]ScoreRecord, error)

	// CountUnreadMessages counts messages with IsRead == false.
	CountUnreadMessages(ctx context.Context) (int, error)

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// PruneRecords deletes records with Timestamp < before and returns how
	// many were deleted.
	PruneRecords(ctx context.Context, before Timestamp) (int, error)

	Close() error
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// Tx is the write surface available inside Store.WithTx.
type Tx interface {
	// Clear removes every row of the collection.
	Clear(ctx context.Context, c CollectionName) error

	InsertUsers(ctx context.Context, users []User) error
	InsertScoreItems(ctx context.Context, items []ScoreItem) error
	InsertRewardItems(ctx context.Context, items []RewardItem) error
	InsertRecords(ctx context.Context, records []ScoreRecord) error
	InsertMessages(ctx context.Context, messages []SecretMessage) error
}

// =============================================================================
// CAPACITY
// =============================================================================

// StorageEstimate mirrors what a host quota API reports.
type StorageEstimate struct {
	UsageBytes int64
	QuotaBytes int64
}

// Estimator reports storage usage. Stores implement it when the host can
// tell how much room is left.
type Estimator interface {
	Estimate(ctx context.Context) (StorageEstimate, error)
}

// =============================================================================
// SNAPSHOT HELPERS
// =============================================================================

// ReplaceSnapshot clears every collection in Schema order and inserts the
// snapshot's contents. Must be called inside WithTx.
func ReplaceSnapshot(ctx context.Context, tx Tx, s AppState) error {
	for _, c := range Schema.Collections {
		if err := tx.Clear(ctx, c.Name); err != nil {
			return &CollectionError{Collection: c.Name, Op: "clear", Err: err}
		}
		if err := insertCollection(ctx, tx, c.Name, s); err != nil {
			return &CollectionError{Collection: c.Name, Op: "insert", Err: err}
		}
	}
	return nil
}

func insertCollection(ctx context.Context, tx Tx, name CollectionName, s AppState) error {
	switch name {
	case CollectionUsers:
		if len(s.Users) == 0 {
			return nil
		}
		return tx.InsertUsers(ctx, s.Users)
	case CollectionScoreItems:
		if len(s.ScoreItems) == 0 {
			return nil
		}
		return tx.InsertScoreItems(ctx, s.ScoreItems)
	case CollectionRewardItems:
		if len(s.RewardItems) == 0 {
			return nil
		}
		return tx.InsertRewardItems(ctx, s.RewardItems)
	case CollectionRecords:
		if len(s.Records) == 0 {
			return nil
		}
		return tx.InsertRecords(ctx, s.Records)
	case CollectionMessages:
		if len(s.Messages) == 0 {
			return nil
		}
		return tx.InsertMessages(ctx, s.Messages)
	}
	return nil
}
