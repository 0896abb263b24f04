package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushbq/Familypoints-Pages/household"
	memstore "github.com/rushbq/Familypoints-Pages/household/store"
	"github.com/rushbq/Familypoints-Pages/persistence"
	"github.com/rushbq/Familypoints-Pages/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

// stores runs fn against both store implementations.
func stores(t *testing.T, fn func(t *testing.T, store household.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, memstore.NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func daysAgo(d int) household.Timestamp {
	return household.TimestampOf(testNow).DaysAgo(d)
}

func richState() household.AppState {
	s := household.DefaultCatalog()
	s.Records = []household.ScoreRecord{
		{ID: "r1", ChildID: "child_1", ChildName: "丞鈞", ItemID: "item_1", ItemName: "做家事",
			PointsChange: 10, Timestamp: daysAgo(2), CreatedByID: "parent_1", CreatedByName: "爸爸/媽媽"},
		{ID: "r2", ChildID: "child_1", ChildName: "丞鈞", ItemID: "reward_3", ItemName: household.RedemptionPrefix + "吃零食",
			PointsChange: -20, Timestamp: daysAgo(1), Note: household.RedemptionNote, CreatedByID: "parent_1", CreatedByName: "爸爸/媽媽"},
	}
	s.Messages = []household.SecretMessage{
		{ID: "m1", FromChildID: "child_2", FromChildName: "佑佑", Content: "晚安", Timestamp: daysAgo(1)},
	}
	return s
}

// =============================================================================
// INITIALIZE
// =============================================================================

func TestInitialize_SeedsOnceAndIsIdempotent(t *testing.T) {
	stores(t, func(t *testing.T, store household.Store) {
		ctx := context.Background()
		e := persistence.New(store, persistence.WithClock(clock))

		require.NoError(t, e.Initialize(ctx))
		first, err := e.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, household.DefaultCatalog(), first)

		require.NoError(t, e.Initialize(ctx))
		second, err := e.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second, "second initialize changes nothing")
	})
}

func TestInitialize_DoesNotTouchExistingData(t *testing.T) {
	stores(t, func(t *testing.T, store household.Store) {
		ctx := context.Background()
		e := persistence.New(store)

		custom := household.AppState{
			Users: []household.User{{ID: "mom", Name: "Mom", Role: household.RoleParent}},
		}
		require.NoError(t, e.ReplaceAll(ctx, custom))
		require.NoError(t, e.Initialize(ctx))

		got, err := e.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, custom.Normalize(), got)
	})
}

// =============================================================================
// REPLACE / READ
// =============================================================================

func TestReplaceAll_RoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, store household.Store) {
		ctx := context.Background()
		e := persistence.New(store)
		want := richState()

		require.NoError(t, e.ReplaceAll(ctx, want))
		got, err := e.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// Replacing with less removes the rest.
		smaller := household.DefaultCatalog()
		require.NoError(t, e.ReplaceAll(ctx, smaller))
		got, err = e.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, smaller, got)
	})
}

func TestReplaceAll_InterruptedLeavesOldSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemory()
	e := persistence.New(store)
	require.NoError(t, e.ReplaceAll(ctx, richState()))

	// GIVEN: the records insert will fail after users/items were rewritten
	boom := errors.New("write interrupted")
	store.FailInsert(household.CollectionRecords, boom)

	next := household.DefaultCatalog()
	next.Users = next.Users[:1]
	next.Records = []household.ScoreRecord{{ID: "new", ChildID: "child_1", PointsChange: 99}}

	// WHEN
	err := e.ReplaceAll(ctx, next)

	// THEN: error surfaces and every collection still holds the old data
	require.ErrorIs(t, err, boom)
	var ce *household.CollectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, household.CollectionRecords, ce.Collection)

	got, err := e.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, richState(), got)
}

func TestReplaceAll_InterruptedSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	e := persistence.New(store)
	require.NoError(t, e.ReplaceAll(ctx, richState()))

	next := household.DefaultCatalog()
	next.Records = []household.ScoreRecord{{ID: "same"}, {ID: "same"}}

	err = e.ReplaceAll(ctx, next)
	require.ErrorIs(t, err, household.ErrDuplicateID)

	got, err := e.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, richState(), got)
}

func TestReadAll_StorageUnavailable(t *testing.T) {
	store := memstore.NewMemory()
	store.SetUnavailable(household.ErrStorageUnavailable)
	e := persistence.New(store)

	_, err := e.ReadAll(context.Background())
	assert.ErrorIs(t, err, household.ErrStorageUnavailable)
	assert.True(t, household.IsStorageFailure(err))
}

// =============================================================================
// RETENTION
// =============================================================================

func TestPruneOlderThan(t *testing.T) {
	stores(t, func(t *testing.T, store household.Store) {
		ctx := context.Background()
		e := persistence.New(store, persistence.WithClock(clock))

		s := household.DefaultCatalog()
		s.Records = []household.ScoreRecord{
			{ID: "a", ChildID: "child_1", PointsChange: 1, Timestamp: daysAgo(400)},
			{ID: "b", ChildID: "child_1", PointsChange: 2, Timestamp: daysAgo(200)},
			{ID: "c", ChildID: "child_1", PointsChange: 3, Timestamp: daysAgo(10)},
		}
		require.NoError(t, e.ReplaceAll(ctx, s))

		deleted, err := e.PruneOlderThan(ctx, 365)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		got, err := e.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got.Records, 2)
		assert.Equal(t, "b", got.Records[0].ID)
		assert.Equal(t, "c", got.Records[1].ID)
		assert.Equal(t, 5, household.CalculateScore("child_1", got.Records))

		deleted, err = e.PruneOlderThan(ctx, 365)
		require.NoError(t, err)
		assert.Zero(t, deleted, "pruning again deletes nothing")
	})
}

func TestPruneOlderThan_Boundary(t *testing.T) {
	ctx := context.Background()
	e := persistence.New(memstore.NewMemory(), persistence.WithClock(clock))

	s := household.DefaultCatalog()
	s.Records = []household.ScoreRecord{
		{ID: "at", Timestamp: daysAgo(30)},
		{ID: "before", Timestamp: daysAgo(30) - 1},
	}
	require.NoError(t, e.ReplaceAll(ctx, s))

	deleted, err := e.PruneOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "a record exactly at the cutoff is kept")
}

func TestPruneOlderThan_InvalidDays(t *testing.T) {
	e := persistence.New(memstore.NewMemory())

	for _, days := range []int{0, -1} {
		_, err := e.PruneOlderThan(context.Background(), days)
		assert.ErrorIs(t, err, household.ErrInvalidRetention)
		assert.True(t, household.IsClientError(err))
	}
}

func TestCutoffAndPruneBefore(t *testing.T) {
	ctx := context.Background()
	e := persistence.New(memstore.NewMemory(), persistence.WithClock(clock))

	cutoff, err := e.Cutoff(30)
	require.NoError(t, err)
	assert.Equal(t, daysAgo(30), cutoff)

	_, err = e.Cutoff(0)
	assert.ErrorIs(t, err, household.ErrInvalidRetention)

	s := household.DefaultCatalog()
	s.Records = []household.ScoreRecord{{ID: "a", Timestamp: cutoff - 1}, {ID: "b", Timestamp: cutoff}}
	require.NoError(t, e.ReplaceAll(ctx, s))

	deleted, err := e.PruneBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestRecordsByChildAndUnread(t *testing.T) {
	stores(t, func(t *testing.T, store household.Store) {
		ctx := context.Background()
		e := persistence.New(store, persistence.WithClock(clock))
		require.NoError(t, e.ReplaceAll(ctx, richState()))

		all, err := e.RecordsByChild(ctx, "child_1", 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		lastDay, err := e.RecordsByChild(ctx, "child_1", 1)
		require.NoError(t, err)
		require.Len(t, lastDay, 1)
		assert.Equal(t, "r2", lastDay[0].ID)

		none, err := e.RecordsByChild(ctx, "child_2", 0)
		require.NoError(t, err)
		assert.Empty(t, none)

		n, err := e.UnreadMessageCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
