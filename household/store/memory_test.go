package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushbq/Familypoints-Pages/household"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	s := household.DefaultCatalog()
	s.Records = []household.ScoreRecord{
		{ID: "r1", ChildID: "child_1", PointsChange: 10, Timestamp: 300},
		{ID: "r2", ChildID: "child_2", PointsChange: 5, Timestamp: 100},
		{ID: "r3", ChildID: "child_1", PointsChange: -3, Timestamp: 200},
	}
	s.Messages = []household.SecretMessage{
		{ID: "m1", FromChildID: "child_1", Content: "hi"},
		{ID: "m2", FromChildID: "child_2", Content: "yo", IsRead: true},
	}
	require.NoError(t, m.WithTx(context.Background(), func(tx household.Tx) error {
		return household.ReplaceSnapshot(context.Background(), tx, s)
	}))
	return m
}

func TestMemory_Reads(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	n, err := m.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := m.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, []string{records[0].ID, records[1].ID, records[2].ID}, "insertion order")

	byChild, err := m.RecordsByChild(ctx, "child_1", 0)
	require.NoError(t, err)
	require.Len(t, byChild, 2)
	assert.Equal(t, "r3", byChild[0].ID, "ordered by timestamp")

	recent, err := m.RecordsByChild(ctx, "child_1", 250)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	unread, err := m.CountUnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	boom := errors.New("disk gone")
	m.FailInsert(household.CollectionRecords, boom)

	err := m.WithTx(ctx, func(tx household.Tx) error {
		return household.ReplaceSnapshot(ctx, tx, household.AppState{
			Users:   []household.User{{ID: "u", Name: "n", Role: household.RoleParent}},
			Records: []household.ScoreRecord{{ID: "x"}},
		})
	})
	require.ErrorIs(t, err, boom)

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3, "users restored")
	records, err := m.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3, "records restored")
}

func TestMemory_DuplicateID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.WithTx(ctx, func(tx household.Tx) error {
		return tx.InsertRecords(ctx, []household.ScoreRecord{{ID: "a"}, {ID: "a"}})
	})
	assert.ErrorIs(t, err, household.ErrDuplicateID)

	records, err := m.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemory_Prune(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	n, err := m.PruneRecords(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "strictly before the cutoff")

	records, err := m.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemory_UnavailableAndClosed(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	m.SetUnavailable(household.ErrStorageUnavailable)
	_, err := m.ListUsers(ctx)
	assert.ErrorIs(t, err, household.ErrStorageUnavailable)
	m.SetUnavailable(nil)

	require.NoError(t, m.Close())
	_, err = m.CountUsers(ctx)
	assert.ErrorIs(t, err, household.ErrStorageUnavailable)
}

func TestMemory_Estimate(t *testing.T) {
	m := NewMemory(WithQuota(1 << 20))
	est, err := m.Estimate(context.Background())
	require.NoError(t, err)
	assert.Positive(t, est.UsageBytes)
	assert.Equal(t, int64(1<<20), est.QuotaBytes)
}

func TestMemory_FailListFiresOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("read failed")
	m.FailList(household.CollectionRecords, boom)

	_, err := m.ListUsers(ctx)
	require.NoError(t, err, "other collections unaffected")

	_, err = m.ListRecords(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = m.ListRecords(ctx)
	assert.NoError(t, err)
}
