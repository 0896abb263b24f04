/*
errors.go - Centralized error types for the household ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations translate driver errors into these sentinels so that
  the persistence engine, the state facade and the HTTP layer can decide on
  recovery with errors.Is/errors.As, never by inspecting strings.

ERROR CATEGORIES:
  1. Storage errors   - the durable store failed (full, unavailable, corrupt)
  2. Validation errors - caller input rejected before any write happens
  3. Lookup errors    - referenced entity does not exist

SEE ALSO:
  - store/sqlite/errors.go: Driver error classification
  - persistence/engine.go: Wraps these with operation context
*/
package household

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStorageUnavailable is returned when the durable store cannot be opened,
	// is closed, or reports corruption.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded is returned when the store has no room for the write.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrSchemaMismatch is returned when the store's schema version or indexes
	// do not match Schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrDuplicateID is returned when a bulk insert contains an id twice or an
	// id that already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidBackup is returned when an import payload is not a backup.
	// Nothing has been written when this is returned.
	ErrInvalidBackup = errors.New("invalid backup format")

	// ErrInvalidRetention is returned for a non-positive retention window.
	ErrInvalidRetention = errors.New("retention days must be a positive integer")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientPoints is returned by the redemption guard when the
	// child's score is below the reward cost. The ledger itself never returns it.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrInvalidEntity is returned when an entity fails validation.
	ErrInvalidEntity = errors.New("invalid entity")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CollectionError ties a storage failure to the collection being written.
type CollectionError struct {
	Collection CollectionName
	Op         string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// InsufficientPointsError provides details about a rejected redemption.
type InsufficientPointsError struct {
	ChildID  string
	RewardID string
	Score    int
	Cost     int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: child %s has %d, reward %s costs %d",
		e.ChildID, e.Score, e.RewardID, e.Cost)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEntity
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidBackup) ||
		errors.Is(err, ErrInvalidRetention) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrInvalidEntity) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageFailure returns true if the durable store itself failed.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrSchemaMismatch)
}
