/*
scenarios.go - Demo household loaders for testing and demonstrations

PURPOSE:

	Provides pre-built snapshots that replace the store contents with
	realistic data for demos and UI work. Each scenario starts from the
	default catalog and adds records and messages relative to "now".

AVAILABLE SCENARIOS:

	fresh:         Default catalog, empty ledger
	busy-week:     A week of chores and slip-ups for both children
	overspent:     A child whose redemptions pushed the score negative
	long-history:  Records spread over 500 days, for trying out pruning

HOW SCENARIOS WORK:
 1. Build the snapshot from household.DefaultCatalog()
 2. Append records through household.LogBehavior / RedeemReward
 3. Save it through the facade, exactly like a user edit

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-week"}

NOTE:

	Loading a scenario replaces ALL data. Only use in demo environments.

SEE ALSO:
  - handlers.go: mutate (save path)
  - household/seed.go: Default catalog
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rushbq/Familypoints-Pages/household"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh",
		Name:        "Fresh Household",
		Description: "Default catalog with an empty ledger",
	},
	{
		ID:          "busy-week",
		Name:        "Busy Week",
		Description: "Seven days of chores, slip-ups and a few messages",
	},
	{
		ID:          "overspent",
		Name:        "Overspent",
		Description: "A child whose redemptions left a negative score",
	},
	{
		ID:          "long-history",
		Name:        "Long History",
		Description: "Records spread over 500 days to try retention pruning",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the store with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	build, ok := scenarioBuilders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	res, err := h.mutate(r.Context(), func(household.AppState) (household.AppState, error) {
		return build(h.timestamp())
	})
	if err != nil {
		h.writeDomainError(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, MutationResponse{Save: res, Entity: req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type scenarioBuilder func(now household.Timestamp) (household.AppState, error)

var scenarioBuilders = map[string]scenarioBuilder{
	"fresh":        buildFreshScenario,
	"busy-week":    buildBusyWeekScenario,
	"overspent":    buildOverspentScenario,
	"long-history": buildLongHistoryScenario,
}

// entry is one ledger line in a scenario script.
type entry struct {
	daysAgo int
	childID string
	itemID  string // score item, or reward when redeem is set
	redeem  bool
	note    string
}

func applyEntries(s household.AppState, now household.Timestamp, entries []entry) (household.AppState, error) {
	var err error
	for _, e := range entries {
		at := now.DaysAgo(e.daysAgo)
		if e.redeem {
			s, _, err = household.RedeemReward(s, e.childID, e.itemID, "parent_1", at)
		} else {
			s, _, err = household.LogBehavior(s, e.childID, e.itemID, "parent_1", e.note, at)
		}
		if err != nil {
			return s, fmt.Errorf("scenario entry %s/%s: %w", e.childID, e.itemID, err)
		}
	}
	return s, nil
}

func buildFreshScenario(household.Timestamp) (household.AppState, error) {
	return household.DefaultCatalog(), nil
}

func buildBusyWeekScenario(now household.Timestamp) (household.AppState, error) {
	s, err := applyEntries(household.DefaultCatalog(), now, []entry{
		{daysAgo: 6, childID: "child_1", itemID: "item_1", note: "洗碗"},
		{daysAgo: 6, childID: "child_2", itemID: "item_4"},
		{daysAgo: 5, childID: "child_1", itemID: "item_2", note: "數學考一百分"},
		{daysAgo: 5, childID: "child_2", itemID: "item_8"},
		{daysAgo: 4, childID: "child_1", itemID: "item_3"},
		{daysAgo: 4, childID: "child_2", itemID: "item_3"},
		{daysAgo: 3, childID: "child_1", itemID: "item_6"},
		{daysAgo: 3, childID: "child_2", itemID: "item_6"},
		{daysAgo: 2, childID: "child_1", itemID: "reward_3", redeem: true},
		{daysAgo: 1, childID: "child_2", itemID: "item_1", note: "摺衣服"},
		{daysAgo: 0, childID: "child_1", itemID: "item_4"},
	})
	if err != nil {
		return s, err
	}

	s, _, err = household.SendMessage(s, "child_1", "週末可以去公園嗎？", now.DaysAgo(2))
	if err != nil {
		return s, err
	}
	s, _, err = household.SendMessage(s, "child_2", "我今天有幫忙摺衣服", now.DaysAgo(1))
	return s, err
}

func buildOverspentScenario(now household.Timestamp) (household.AppState, error) {
	return applyEntries(household.DefaultCatalog(), now, []entry{
		{daysAgo: 3, childID: "child_2", itemID: "item_1"},
		{daysAgo: 2, childID: "child_2", itemID: "reward_2", redeem: true},
		{daysAgo: 1, childID: "child_2", itemID: "item_7"},
		{daysAgo: 0, childID: "child_2", itemID: "reward_3", redeem: true},
	})
}

func buildLongHistoryScenario(now household.Timestamp) (household.AppState, error) {
	var entries []entry
	for d := 500; d >= 0; d -= 25 {
		entries = append(entries,
			entry{daysAgo: d, childID: "child_1", itemID: "item_1"},
			entry{daysAgo: d, childID: "child_2", itemID: "item_4"},
		)
	}
	return applyEntries(household.DefaultCatalog(), now, entries)
}
