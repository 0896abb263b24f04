package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushbq/Familypoints-Pages/household"
)

// BackupVersion tags every exported file.
const BackupVersion = "2.0"

// exportedAtLayout is ISO 8601 in UTC with milliseconds.
const exportedAtLayout = "2006-01-02T15:04:05.000Z"

// Backup is the interchange document: the snapshot plus metadata.
type Backup struct {
	Users       []household.User          `json:"users"`
	ScoreItems  []household.ScoreItem     `json:"scoreItems"`
	RewardItems []household.RewardItem    `json:"rewardItems"`
	Records     []household.ScoreRecord   `json:"records"`
	Messages    []household.SecretMessage `json:"messages"`
	ExportedAt  string                    `json:"exportedAt"`
	Version     string                    `json:"version"`
}

// State strips the metadata.
func (b Backup) State() household.AppState {
	return household.AppState{
		Users:       b.Users,
		ScoreItems:  b.ScoreItems,
		RewardItems: b.RewardItems,
		Records:     b.Records,
		Messages:    b.Messages,
	}.Normalize()
}

// EncodeSnapshot renders s as indented interchange JSON stamped with at.
func EncodeSnapshot(s household.AppState, at time.Time) ([]byte, error) {
	s = s.Normalize()
	b := Backup{
		Users:       s.Users,
		ScoreItems:  s.ScoreItems,
		RewardItems: s.RewardItems,
		Records:     s.Records,
		Messages:    s.Messages,
		ExportedAt:  at.UTC().Format(exportedAtLayout),
		Version:     BackupVersion,
	}
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return out, nil
}

// DecodeSnapshot parses interchange JSON. The document must be an object
// with "users" and "records" arrays (empty arrays are fine); anything else
// is ErrInvalidBackup.
func DecodeSnapshot(data []byte) (Backup, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", household.ErrInvalidBackup, err)
	}
	for _, key := range []string{"users", "records"} {
		raw, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return Backup{}, fmt.Errorf("%w: missing %q", household.ErrInvalidBackup, key)
		}
	}

	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", household.ErrInvalidBackup, err)
	}
	return b, nil
}

// ExportSnapshot reads the whole store and returns it as interchange JSON.
func (e *Engine) ExportSnapshot(ctx context.Context) ([]byte, error) {
	s, err := e.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	out, err := EncodeSnapshot(s, e.now())
	if err != nil {
		return nil, err
	}
	e.logger.Info("snapshot exported",
		zap.Int("users", len(s.Users)),
		zap.Int("records", len(s.Records)),
		zap.Int("messages", len(s.Messages)),
	)
	return out, nil
}

// ImportSnapshot replaces the store contents with the backup in data.
// Validation happens before anything is cleared; the write itself follows
// the ReplaceAll contract.
func (e *Engine) ImportSnapshot(ctx context.Context, data []byte) error {
	b, err := DecodeSnapshot(data)
	if err != nil {
		e.logger.Warn("backup rejected", zap.Error(err))
		return fmt.Errorf("import: %w", err)
	}
	if err := e.ReplaceAll(ctx, b.State()); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	e.logger.Info("snapshot imported",
		zap.String("version", b.Version),
		zap.String("exportedAt", b.ExportedAt),
		zap.Int("records", len(b.Records)),
	)
	return nil
}
