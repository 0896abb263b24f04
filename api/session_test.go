/*
session_test.go - Tests for the handler's session snapshot

Tests for:
- Failed saves keep the change in the session
- Prune and import reloads that fail keep the session (never defaults)
- Import is serialized with mutations
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushbq/Familypoints-Pages/household"
	memstore "github.com/rushbq/Familypoints-Pages/household/store"
	"github.com/rushbq/Familypoints-Pages/kvstore"
	"github.com/rushbq/Familypoints-Pages/persistence"
	"github.com/rushbq/Familypoints-Pages/state"
)

type memoryServer struct {
	h        *Handler
	srv      http.Handler
	store    *memstore.Memory
	fallback *kvstore.Memory
}

func newMemoryServer(t *testing.T) memoryServer {
	t.Helper()
	store := memstore.NewMemory()
	fallback := kvstore.NewMemory()

	clock := func() time.Time { return testNow }
	engine := persistence.New(store, persistence.WithClock(clock))
	h := NewHandler(state.New(engine, fallback), WithClock(clock))
	h.Load(context.Background())
	return memoryServer{h: h, srv: NewRouter(h, RouterConfig{}), store: store, fallback: fallback}
}

func (m memoryServer) stored(t *testing.T) household.AppState {
	t.Helper()
	s, err := m.h.engine.ReadAll(context.Background())
	require.NoError(t, err)
	return s
}

func recordAt(id string, points int, daysAgo int) household.ScoreRecord {
	return household.ScoreRecord{
		ID: id, ChildID: "child_1", ChildName: "丞鈞", ItemID: "item_1", ItemName: "做家事",
		PointsChange: points, Timestamp: household.TimestampOf(testNow).DaysAgo(daysAgo),
		CreatedByID: "parent_1", CreatedByName: "爸爸/媽媽",
	}
}

type mutationBody[T any] struct {
	Save   state.SaveResult `json:"save"`
	Entity T                `json:"entity"`
}

// =============================================================================
// FAILED SAVES
// =============================================================================

func TestMutate_FailedSaveKeepsChange(t *testing.T) {
	// GIVEN: both the primary store and the fallback refuse writes
	m := newMemoryServer(t)
	m.store.SetUnavailable(household.ErrQuotaExceeded)
	m.fallback.Fail(errors.New("fallback full"))

	// WHEN: a behavior is logged
	rec := do(t, m.srv, http.MethodPost, "/api/records/behavior", LogBehaviorRequest{
		ChildID: "child_1", ItemID: "item_1", CreatedByID: "parent_1",
	})

	// THEN: the request succeeds with an advisory and the session keeps the record
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[mutationBody[household.ScoreRecord]](t, rec)
	assert.False(t, resp.Save.Success)
	assert.Contains(t, resp.Save.Error, household.ErrQuotaExceeded.Error())
	require.Len(t, m.h.Session().Records, 1)
	assert.Equal(t, 10, score(t, m.srv, "child_1"))

	// WHEN: storage recovers and the next change is saved
	m.store.SetUnavailable(nil)
	rec = do(t, m.srv, http.MethodPost, "/api/records/behavior", LogBehaviorRequest{
		ChildID: "child_1", ItemID: "item_4", CreatedByID: "parent_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[mutationBody[household.ScoreRecord]](t, rec).Save.Success)

	// THEN: the earlier change reaches the store with it
	assert.Len(t, m.stored(t).Records, 2)
}

func TestMutate_FallbackSaveReportsAdvisory(t *testing.T) {
	m := newMemoryServer(t)
	m.store.SetUnavailable(household.ErrStorageUnavailable)

	rec := do(t, m.srv, http.MethodPost, "/api/messages", SendMessageRequest{ChildID: "child_2", Content: "晚安"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[mutationBody[household.SecretMessage]](t, rec)
	assert.True(t, resp.Save.Success)
	assert.Equal(t, state.FallbackSaved, resp.Save.Error)
	assert.Len(t, m.h.Session().Messages, 1)
}

// =============================================================================
// RELOAD FAILURES
// =============================================================================

func TestPrune_ReloadFailureKeepsSurvivingRecords(t *testing.T) {
	// GIVEN: one expired record and two recent ones
	m := newMemoryServer(t)
	snapshot := household.DefaultCatalog()
	snapshot.Records = []household.ScoreRecord{
		recordAt("old", 10, 400),
		recordAt("keep1", 50, 10),
		recordAt("keep2", 50, 5),
	}
	require.Equal(t, http.StatusOK, do(t, m.srv, http.MethodPut, "/api/state", snapshot).Code)

	// AND: the records read after the prune fails once
	m.store.FailList(household.CollectionRecords, household.ErrStorageUnavailable)

	// WHEN: pruning with a 365-day window
	rec := do(t, m.srv, http.MethodPost, "/api/maintenance/prune", PruneRequest{Days: 365})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[PruneResponse](t, rec).Deleted)

	// THEN: the session drops only the expired record
	s := m.h.Session()
	require.Len(t, s.Records, 2)
	assert.Equal(t, "keep1", s.Records[0].ID)
	assert.Equal(t, "keep2", s.Records[1].ID)
	assert.Len(t, s.Users, 3)

	// AND: the next mutation saves the survivors along with the new record
	rec = do(t, m.srv, http.MethodPost, "/api/records/behavior", LogBehaviorRequest{
		ChildID: "child_1", ItemID: "item_1", CreatedByID: "parent_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	stored := m.stored(t)
	assert.Len(t, stored.Records, 3)
	assert.Equal(t, 110, household.CalculateScore("child_1", stored.Records))
}

func TestImportBackup_ReloadFailureKeepsImportedSnapshot(t *testing.T) {
	m := newMemoryServer(t)

	backup := household.DefaultCatalog()
	backup.Records = []household.ScoreRecord{recordAt("imported", 30, 1)}
	data, err := persistence.EncodeSnapshot(backup, testNow)
	require.NoError(t, err)

	m.store.FailList(household.CollectionRecords, household.ErrStorageUnavailable)

	rec := do(t, m.srv, http.MethodPost, "/api/backup", data)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, backup, m.h.Session())

	rec = do(t, m.srv, http.MethodPost, "/api/records/behavior", LogBehaviorRequest{
		ChildID: "child_1", ItemID: "item_1", CreatedByID: "parent_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 40, household.CalculateScore("child_1", m.stored(t).Records))
}

// =============================================================================
// SERIALIZATION
// =============================================================================

func TestImportBackup_SerializedWithMutations(t *testing.T) {
	m := newMemoryServer(t)

	backup := household.DefaultCatalog()
	backup.Records = []household.ScoreRecord{recordAt("imported", 30, 1)}
	data, err := persistence.EncodeSnapshot(backup, testNow)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				do(t, m.srv, http.MethodPost, "/api/backup", data)
				return
			}
			do(t, m.srv, http.MethodPost, "/api/messages", SendMessageRequest{
				ChildID: "child_1", Content: fmt.Sprintf("message %d", i),
			})
		}(i)
	}
	wg.Wait()

	// Every operation ran whole, so the session and the store agree.
	assert.Equal(t, m.stored(t), m.h.Session())
}
