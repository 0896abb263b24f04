/*
handlers.go - HTTP API handlers for the household points ledger

PURPOSE:
  Exposes the state facade and persistence engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the household
  helpers for every change.

ENDPOINTS:
  State:
    GET    /api/state                       Current session snapshot
    PUT    /api/state                       Save a whole snapshot

  Children:
    GET    /api/scores                      Every child's score
    GET    /api/children/{id}/score         Current score
    GET    /api/children/{id}/records       History (?days=N)

  Records:
    POST   /api/records/behavior            Log a behavior
    POST   /api/records/redemption          Redeem a reward (score >= cost)

  Messages:
    GET    /api/messages/unread             Unread count
    POST   /api/messages                    Child sends a message
    POST   /api/messages/{id}/read          Mark read

  Catalog:
    PUT    /api/score-items                 Add or replace a score item
    DELETE /api/score-items/{id}            Remove a score item
    PUT    /api/reward-items                Add or replace a reward
    DELETE /api/reward-items/{id}           Remove a reward
    PATCH  /api/users/{id}                  Rename / change avatar

  Maintenance:
    GET    /api/storage                     Capacity report
    POST   /api/maintenance/prune           Delete old records
    GET    /api/backup                      Download interchange JSON
    POST   /api/backup                      Restore interchange JSON

  Scenarios (demo):
    GET    /api/scenarios                   List demo households
    GET    /api/scenarios/current           Last loaded scenario
    POST   /api/scenarios/load              Replace data with a scenario

SESSION:
  The handler holds the current snapshot. Every mutation derives a new
  snapshot from it, adopts it, and saves it through the facade. A failed
  save keeps the change in the session; the response carries the
  SaveResult (success false, error) as an advisory. Prune and import
  reload the session from the store under mu; a failed reload keeps the
  session rather than substituting defaults. All of these are serialized
  by mu.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid backup
  - 404: Unknown child, item, reward, message or user
  - 409: Insufficient points, duplicate ids
  - 507: Storage quota exceeded
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scenarios.go: Demo data loaders
  - state/facade.go: Load/save contract
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rushbq/Familypoints-Pages/household"
	"github.com/rushbq/Familypoints-Pages/persistence"
	"github.com/rushbq/Familypoints-Pages/state"
)

// maxBackupBytes bounds POST /api/backup bodies.
const maxBackupBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	facade         *state.Facade
	engine         *persistence.Engine
	retentionDays  int
	warningPercent float64
	now            func() time.Time
	logger         *zap.Logger

	mu              sync.Mutex
	session         household.AppState
	currentScenario string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRetentionDays sets the prune window used when a request gives none.
func WithRetentionDays(days int) HandlerOption {
	return func(h *Handler) { h.retentionDays = days }
}

// WithWarningPercent sets the usage level reported as a warning.
func WithWarningPercent(p float64) HandlerOption {
	return func(h *Handler) { h.warningPercent = p }
}

// WithClock replaces time.Now for new records and messages.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a handler over facade. Call Load before serving.
func NewHandler(facade *state.Facade, opts ...HandlerOption) *Handler {
	h := &Handler{
		facade:         facade,
		engine:         facade.Engine(),
		retentionDays:  365,
		warningPercent: persistence.WarningPercent,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("component", "api"))
	return h
}

// Load replaces the session snapshot with what the store holds. Used at
// startup only: on a read failure the session becomes the default state.
func (h *Handler) Load(ctx context.Context) {
	s := h.facade.LoadState(ctx)
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
}

// Session returns the current snapshot.
func (h *Handler) Session() household.AppState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Clone()
}

// mutate derives the next snapshot with fn, adopts it, and saves it. A
// failed save does not undo the change; the SaveResult reports it.
func (h *Handler) mutate(ctx context.Context, fn func(household.AppState) (household.AppState, error)) (state.SaveResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := fn(h.session)
	if err != nil {
		return state.SaveResult{}, err
	}
	h.session = next

	res := h.facade.SaveState(ctx, next)
	if !res.Success {
		h.logger.Warn("save failed, session keeps the change", zap.String("error", res.Error))
	}
	return res, nil
}

// reloadLocked replaces the session with the store contents. On a read
// failure the session is left untouched. The caller holds h.mu.
func (h *Handler) reloadLocked(ctx context.Context) error {
	s, err := h.engine.ReadAll(ctx)
	if err != nil {
		h.logger.Error("reload failed, keeping session", zap.Error(err))
		return err
	}
	h.session = s
	return nil
}

func (h *Handler) timestamp() household.Timestamp {
	return household.TimestampOf(h.now())
}

// =============================================================================
// STATE HANDLERS
// =============================================================================

// GetState returns the session snapshot.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session().Normalize())
}

// PutState saves a whole snapshot.
func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	var snapshot household.AppState
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.mutate(r.Context(), func(household.AppState) (household.AppState, error) {
		return snapshot.Normalize(), nil
	})
	if err != nil {
		h.writeDomainError(w, "Failed to save state", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// CHILD HANDLERS
// =============================================================================

// GetScore returns a child's current score.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s := h.Session()

	u, ok := s.FindUser(id)
	if !ok || !u.IsChild() {
		writeError(w, http.StatusNotFound, "Child not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{
		ChildID: id,
		Score:   h.facade.CalculateScore(id, s.Records),
	})
}

// GetScores returns every child's total, in household order.
func (h *Handler) GetScores(w http.ResponseWriter, r *http.Request) {
	s := h.Session()
	board := household.NewScoreboard(s.Records)

	resp := ScoresResponse{Scores: []ScoreResponse{}}
	for _, child := range s.Children() {
		resp.Scores = append(resp.Scores, ScoreResponse{ChildID: child.ID, Score: board.Score(child.ID)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetChildRecords returns a child's history from the store.
func (h *Handler) GetChildRecords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid days (use a non-negative integer)", err)
			return
		}
		days = n
	}

	records, err := h.engine.RecordsByChild(r.Context(), id, days)
	if err != nil {
		h.writeDomainError(w, "Failed to list records", err)
		return
	}

	writeJSON(w, http.StatusOK, RecordsResponse{ChildID: id, Days: days, Records: toRecordDTOs(records)})
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// LogBehavior appends a behavior record.
func (h *Handler) LogBehavior(w http.ResponseWriter, r *http.Request) {
	var req LogBehaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var rec household.ScoreRecord
	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		next, created, err := household.LogBehavior(s, req.ChildID, req.ItemID, req.CreatedByID, req.Note, h.timestamp())
		rec = created
		return next, err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to log behavior", err)
		return
	}

	writeJSON(w, http.StatusCreated, MutationResponse{Save: res, Entity: rec})
}

// RedeemReward appends a redemption record if the child can afford it.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var rec household.ScoreRecord
	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		if err := household.CheckRedeemable(s, req.ChildID, req.RewardID); err != nil {
			return s, err
		}
		next, created, err := household.RedeemReward(s, req.ChildID, req.RewardID, req.CreatedByID, h.timestamp())
		rec = created
		return next, err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to redeem reward", err)
		return
	}

	writeJSON(w, http.StatusCreated, MutationResponse{Save: res, Entity: rec})
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

// GetUnreadCount returns the number of unread messages in the store.
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.UnreadMessageCount(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to count messages", err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadResponse{Count: n})
}

// SendMessage stores a child's message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var msg household.SecretMessage
	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		next, created, err := household.SendMessage(s, req.ChildID, req.Content, h.timestamp())
		msg = created
		return next, err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, MutationResponse{Save: res, Entity: msg})
}

// MarkMessageRead flips a message to read.
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		return household.MarkMessageRead(s, id)
	})
	if err != nil {
		h.writeDomainError(w, "Failed to mark message read", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Save: res})
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// UpsertScoreItem adds or replaces a score item.
func (h *Handler) UpsertScoreItem(w http.ResponseWriter, r *http.Request) {
	var item household.ScoreItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		next, saved, err := household.UpsertScoreItem(s, item)
		item = saved
		return next, err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to save score item", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Save: res, Entity: item})
}

// DeleteScoreItem removes a score item.
func (h *Handler) DeleteScoreItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		return household.DeleteScoreItem(s, id)
	})
	if err != nil {
		h.writeDomainError(w, "Failed to delete score item", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Save: res})
}

// UpsertRewardItem adds or replaces a reward.
func (h *Handler) UpsertRewardItem(w http.ResponseWriter, r *http.Request) {
	var reward household.RewardItem
	if err := json.NewDecoder(r.Body).Decode(&reward); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		next, saved, err := household.UpsertRewardItem(s, reward)
		reward = saved
		return next, err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to save reward", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Save: res, Entity: reward})
}

// DeleteRewardItem removes a reward.
func (h *Handler) DeleteRewardItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		return household.DeleteRewardItem(s, id)
	})
	if err != nil {
		h.writeDomainError(w, "Failed to delete reward", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Save: res})
}

// UpdateUser edits a user's name and avatar.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var user household.User
	res, err := h.mutate(r.Context(), func(s household.AppState) (household.AppState, error) {
		next, updated, err := household.UpdateUser(s, id, req.Name, req.Avatar)
		user = updated
		return next, err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to update user", err)
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Save: res, Entity: user})
}

// =============================================================================
// MAINTENANCE HANDLERS
// =============================================================================

// GetStorage returns the capacity report.
func (h *Handler) GetStorage(w http.ResponseWriter, r *http.Request) {
	info := h.engine.CapacityInfo(r.Context())
	writeJSON(w, http.StatusOK, StorageResponse{
		CapacityInfo: info,
		Warning:      info.Known() && info.Percentage > h.warningPercent,
	})
}

// Prune deletes records older than the requested window and reloads the
// session. The UI asks the user to confirm before calling this.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	var req PruneRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	days := req.Days
	if days == 0 {
		days = h.retentionDays
	}

	deleted, err := h.pruneRecords(r.Context(), days)
	if err != nil {
		h.writeDomainError(w, "Failed to prune records", err)
		return
	}

	writeJSON(w, http.StatusOK, PruneResponse{Days: days, Deleted: deleted})
}

// pruneRecords deletes records older than days and reloads the session.
// When the reload fails the same cutoff is applied to the session instead.
// Shared by the prune endpoint and the retention scheduler.
func (h *Handler) pruneRecords(ctx context.Context, days int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff, err := h.engine.Cutoff(days)
	if err != nil {
		return 0, err
	}
	deleted, err := h.engine.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		if err := h.reloadLocked(ctx); err != nil {
			h.session = withoutRecordsBefore(h.session, cutoff)
		}
	}
	return deleted, nil
}

func withoutRecordsBefore(s household.AppState, cutoff household.Timestamp) household.AppState {
	next := s.Clone()
	next.Records = next.Records[:0]
	for _, r := range s.Records {
		if !r.Timestamp.Before(cutoff) {
			next.Records = append(next.Records, r)
		}
	}
	return next
}

// ExportBackup downloads the store as interchange JSON.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.ExportSnapshot(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to export backup", err)
		return
	}

	name := fmt.Sprintf("family_points_backup_%s.json", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportBackup replaces the store with an uploaded backup and reloads the
// session.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read backup", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.engine.ImportSnapshot(r.Context(), data); err != nil {
		h.writeDomainError(w, "Failed to import backup", err)
		return
	}
	if err := h.reloadLocked(r.Context()); err != nil {
		// The import committed; the uploaded snapshot is what the store holds.
		if b, derr := persistence.DecodeSnapshot(data); derr == nil {
			h.session = b.State()
		}
	}

	writeJSON(w, http.StatusOK, h.session.Clone().Normalize())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case household.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, household.ErrInsufficientPoints), errors.Is(err, household.ErrDuplicateID):
		return http.StatusConflict
	case household.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, household.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}
