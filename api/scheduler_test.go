package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionScheduler_RunOnce(t *testing.T) {
	// GIVEN: 500 days of history
	h, srv := newTestServer(t)
	require.Equal(t, http.StatusOK,
		do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "long-history"}).Code)

	// WHEN: the scheduler runs with a 365-day window
	rs := NewRetentionScheduler(h, time.Hour, 365)
	deleted, err := rs.RunOnce(context.Background())

	// THEN: old records are gone from the store and the session
	require.NoError(t, err)
	assert.Equal(t, 12, deleted)
	assert.Len(t, h.Session().Records, 30)

	stored, err := h.engine.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored.Records, 30)
	assert.Len(t, stored.Users, 3, "catalog untouched")

	deleted, err = rs.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRetentionScheduler_InvalidDays(t *testing.T) {
	h, _ := newTestServer(t)
	rs := NewRetentionScheduler(h, time.Hour, 0)

	_, err := rs.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestRetentionScheduler_StartPrunesImmediately(t *testing.T) {
	h, srv := newTestServer(t)
	require.Equal(t, http.StatusOK,
		do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "long-history"}).Code)

	rs := NewRetentionScheduler(h, time.Hour, 365)
	rs.Start()
	rs.Start() // second start is a no-op
	defer rs.Stop()

	assert.Eventually(t, func() bool {
		return len(h.Session().Records) == 30
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetentionScheduler_Disabled(t *testing.T) {
	h, _ := newTestServer(t)
	rs := NewRetentionScheduler(h, 0, 365)

	rs.Start()
	assert.Nil(t, rs.ticker)
	rs.Stop()
}
