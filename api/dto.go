/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON bodies for the household API. Entities themselves (users, items,
  records, messages) already carry their wire tags in package household and
  are returned as-is; only request envelopes and composite responses live
  here.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done in handlers and in the household helpers, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - household/types.go: Entity wire format
*/
package api

import (
	"github.com/rushbq/Familypoints-Pages/household"
	"github.com/rushbq/Familypoints-Pages/persistence"
	"github.com/rushbq/Familypoints-Pages/state"
)

// =============================================================================
// REQUESTS
// =============================================================================

// LogBehaviorRequest records a behavior for a child.
type LogBehaviorRequest struct {
	ChildID     string `json:"childId"`
	ItemID      string `json:"itemId"`
	CreatedByID string `json:"createdById"`
	Note        string `json:"note,omitempty"`
}

// RedeemRequest spends points on a reward.
type RedeemRequest struct {
	ChildID     string `json:"childId"`
	RewardID    string `json:"rewardId"`
	CreatedByID string `json:"createdById"`
}

// SendMessageRequest is a child's secret message.
type SendMessageRequest struct {
	ChildID string `json:"childId"`
	Content string `json:"content"`
}

// PruneRequest sets the retention window. Zero uses the configured default.
type PruneRequest struct {
	Days int `json:"days"`
}

// UpdateUserRequest edits a user's display fields. Empty fields are kept.
type UpdateUserRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// MutationResponse is returned by every endpoint that saves the session.
type MutationResponse struct {
	Save   state.SaveResult `json:"save"`
	Entity any              `json:"entity,omitempty"`
}

// ScoreResponse is a child's current total.
type ScoreResponse struct {
	ChildID string `json:"childId"`
	Score   int    `json:"score"`
}

// ScoresResponse lists every child's current total.
type ScoresResponse struct {
	Scores []ScoreResponse `json:"scores"`
}

// RecordDTO is a history entry with the redemption flag the UI renders by.
type RecordDTO struct {
	household.ScoreRecord
	IsRedemption bool `json:"isRedemption"`
}

// RecordsResponse is a child's history.
type RecordsResponse struct {
	ChildID string      `json:"childId"`
	Days    int         `json:"days,omitempty"`
	Records []RecordDTO `json:"records"`
}

func toRecordDTOs(records []household.ScoreRecord) []RecordDTO {
	out := make([]RecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, RecordDTO{ScoreRecord: r, IsRedemption: r.IsRedemption()})
	}
	return out
}

// StorageResponse is the capacity report plus the advisory flag.
type StorageResponse struct {
	persistence.CapacityInfo
	Warning bool `json:"warning"`
}

// PruneResponse reports how many records were deleted.
type PruneResponse struct {
	Days    int `json:"days"`
	Deleted int `json:"deleted"`
}

// UnreadResponse is the unread badge count.
type UnreadResponse struct {
	Count int `json:"count"`
}

// ScenarioDTO describes a demo household.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
