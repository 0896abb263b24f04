/*
facade.go - Load/save entry point for the application

PURPOSE:
  The only surface the UI layer talks to for persistence. It hides the
  engine's error values behind two contracts that cannot fail:

    LoadState  always returns a usable snapshot (the default one on error)
    SaveState  always returns a SaveResult describing what happened

SAVE PATH:
  1. Engine.ReplaceAll in one transaction
  2. On success, CapacityInfo; usage above the warning level sets
     StorageWarning
  3. On failure, the snapshot is written as JSON to the fallback key/value
     store. If that works too, the save still counts as a success.

SEE ALSO:
  - persistence/engine.go: The durable operations used here
  - kvstore/kvstore.go: Fallback area
*/
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rushbq/Familypoints-Pages/household"
	"github.com/rushbq/Familypoints-Pages/kvstore"
	"github.com/rushbq/Familypoints-Pages/persistence"
)

// FallbackSaved is the SaveResult.Error text when the primary store failed
// and the fallback took the snapshot.
const FallbackSaved = "saved to fallback storage"

// SaveResult reports the outcome of SaveState.
type SaveResult struct {
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	StorageWarning bool   `json:"storageWarning,omitempty"`
}

// Facade wraps the engine with the never-fail load/save contract.
type Facade struct {
	engine         *persistence.Engine
	fallback       kvstore.Store
	warningPercent float64
	logger         *zap.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// WithWarningPercent sets the usage level above which saves report a
// storage warning.
func WithWarningPercent(p float64) Option {
	return func(f *Facade) { f.warningPercent = p }
}

// New creates a facade. fallback may be nil, in which case a failed save is
// simply reported as failed.
func New(engine *persistence.Engine, fallback kvstore.Store, opts ...Option) *Facade {
	f := &Facade{
		engine:         engine,
		fallback:       fallback,
		warningPercent: persistence.WarningPercent,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("component", "state"))
	return f
}

// Engine returns the underlying engine.
func (f *Facade) Engine() *persistence.Engine {
	return f.engine
}

// LoadState initializes the store if needed and reads the full snapshot.
// Any failure yields household.DefaultState().
func (f *Facade) LoadState(ctx context.Context) household.AppState {
	if err := f.engine.Initialize(ctx); err != nil {
		f.logger.Warn("initialize failed, using default state", zap.Error(err))
		return household.DefaultState()
	}
	s, err := f.engine.ReadAll(ctx)
	if err != nil {
		f.logger.Warn("load failed, using default state", zap.Error(err))
		return household.DefaultState()
	}
	return s
}

// SaveState persists snapshot as the complete new state.
func (f *Facade) SaveState(ctx context.Context, snapshot household.AppState) SaveResult {
	err := f.engine.ReplaceAll(ctx, snapshot)
	if err == nil {
		info := f.engine.CapacityInfo(ctx)
		warn := info.Known() && info.Percentage > f.warningPercent
		if warn {
			f.logger.Warn("storage nearly full",
				zap.Float64("percentage", info.Percentage),
				zap.String("used", info.UsedFormatted),
				zap.String("quota", info.QuotaFormatted),
			)
		}
		return SaveResult{Success: true, StorageWarning: warn}
	}

	f.logger.Error("save failed", zap.Error(err))
	if ferr := f.saveFallback(ctx, snapshot); ferr != nil {
		f.logger.Error("fallback save failed", zap.Error(ferr))
		return SaveResult{Success: false, Error: err.Error()}
	}
	f.logger.Warn("snapshot written to fallback storage", zap.String("key", kvstore.FallbackKey))
	return SaveResult{Success: true, Error: FallbackSaved}
}

func (f *Facade) saveFallback(ctx context.Context, snapshot household.AppState) error {
	if f.fallback == nil {
		return errors.New("no fallback store configured")
	}
	data, err := json.Marshal(snapshot.Normalize())
	if err != nil {
		return fmt.Errorf("encode fallback: %w", err)
	}
	return f.fallback.Put(ctx, kvstore.FallbackKey, data)
}

// LoadFallback reads the snapshot last written to the fallback store. ok is
// false when nothing was ever written there.
func (f *Facade) LoadFallback(ctx context.Context) (household.AppState, bool, error) {
	if f.fallback == nil {
		return household.AppState{}, false, nil
	}
	data, err := f.fallback.Get(ctx, kvstore.FallbackKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return household.AppState{}, false, nil
	}
	if err != nil {
		return household.AppState{}, false, fmt.Errorf("load fallback: %w", err)
	}
	var s household.AppState
	if err := json.Unmarshal(data, &s); err != nil {
		return household.AppState{}, false, fmt.Errorf("decode fallback: %w", err)
	}
	return s.Normalize(), true, nil
}

// CalculateScore sums childID's point changes over records.
func (f *Facade) CalculateScore(childID string, records []household.ScoreRecord) int {
	return household.CalculateScore(childID, records)
}
