// Package store provides Store implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rushbq/Familypoints-Pages/household"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the five collections in process memory. WithTx is simulated
// with a snapshot + rollback on error, so the transactional contract holds
// exactly as it does for the SQLite store.
type Memory struct {
	mu   sync.RWMutex
	data memorySnapshot

	quota  int64
	faults map[faultKey]error
	down   error
	closed bool
}

type memorySnapshot struct {
	users       []household.User
	scoreItems  []household.ScoreItem
	rewardItems []household.RewardItem
	records     []household.ScoreRecord
	messages    []household.SecretMessage
}

type faultKey struct {
	op         string
	collection household.CollectionName
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithQuota makes Estimate report quota bytes. Zero means no quota is known.
func WithQuota(bytes int64) MemoryOption {
	return func(m *Memory) { m.quota = bytes }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{faults: make(map[faultKey]error)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// FAULT INJECTION
// =============================================================================

// FailInsert makes the next insert into collection fail with err. Used to
// interrupt a multi-collection write half way through.
func (m *Memory) FailInsert(collection household.CollectionName, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[faultKey{op: "insert", collection: collection}] = err
}

// FailClear makes the next clear of collection fail with err.
func (m *Memory) FailClear(collection household.CollectionName, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[faultKey{op: "clear", collection: collection}] = err
}

// FailList makes the next full read of collection fail with err.
func (m *Memory) FailList(collection household.CollectionName, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[faultKey{op: "list", collection: collection}] = err
}

// SetUnavailable makes every operation fail with err until called with nil.
func (m *Memory) SetUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = err
}

func (m *Memory) takeFaultLocked(op string, c household.CollectionName) error {
	k := faultKey{op: op, collection: c}
	if err, ok := m.faults[k]; ok {
		delete(m.faults, k)
		return err
	}
	return nil
}

func (m *Memory) takeListFault(c household.CollectionName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takeFaultLocked("list", c)
}

func (m *Memory) availableLocked() error {
	if m.closed {
		return fmt.Errorf("%w: store closed", household.ErrStorageUnavailable)
	}
	return m.down
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return 0, err
	}
	return len(m.data.users), nil
}

func (m *Memory) ListUsers(_ context.Context) ([]household.User, error) {
	if err := m.takeListFault(household.CollectionUsers); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return nil, err
	}
	return append([]household.User{}, m.data.users...), nil
}

func (m *Memory) ListScoreItems(_ context.Context) ([]household.ScoreItem, error) {
	if err := m.takeListFault(household.CollectionScoreItems); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return nil, err
	}
	return append([]household.ScoreItem{}, m.data.scoreItems...), nil
}

func (m *Memory) ListRewardItems(_ context.Context) ([]household.RewardItem, error) {
	if err := m.takeListFault(household.CollectionRewardItems); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return nil, err
	}
	return append([]household.RewardItem{}, m.data.rewardItems...), nil
}

func (m *Memory) ListRecords(_ context.Context) ([]household.ScoreRecord, error) {
	if err := m.takeListFault(household.CollectionRecords); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return nil, err
	}
	return append([]household.ScoreRecord{}, m.data.records...), nil
}

func (m *Memory) ListMessages(_ context.Context) ([]household.SecretMessage, error) {
	if err := m.takeListFault(household.CollectionMessages); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return nil, err
	}
	return append([]household.SecretMessage{}, m.data.messages...), nil
}

func (m *Memory) RecordsByChild(_ context.Context, childID string, since household.Timestamp) ([]household.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return nil, err
	}
	result := []household.ScoreRecord{}
	for _, r := range m.data.records {
		if r.ChildID == childID && r.Timestamp >= since {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

func (m *Memory) CountUnreadMessages(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return 0, err
	}
	return household.UnreadCount(m.data.messages), nil
}

// =============================================================================
// WRITES
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(household.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.availableLocked(); err != nil {
		return err
	}

	snapshot := m.snapshot()
	view := &memoryTxView{parent: m}
	if err := fn(view); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// PruneRecords deletes records older than before.
func (m *Memory) PruneRecords(_ context.Context, before household.Timestamp) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.availableLocked(); err != nil {
		return 0, err
	}

	kept := m.data.records[:0:0]
	deleted := 0
	for _, r := range m.data.records {
		if r.Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.data.records = kept
	return deleted, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Estimate reports the JSON size of the contents as usage.
func (m *Memory) Estimate(_ context.Context) (household.StorageEstimate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.availableLocked(); err != nil {
		return household.StorageEstimate{}, err
	}
	raw, err := json.Marshal(household.AppState{
		Users:       m.data.users,
		ScoreItems:  m.data.scoreItems,
		RewardItems: m.data.rewardItems,
		Records:     m.data.records,
		Messages:    m.data.messages,
	})
	if err != nil {
		return household.StorageEstimate{}, err
	}
	return household.StorageEstimate{UsageBytes: int64(len(raw)), QuotaBytes: m.quota}, nil
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		users:       append([]household.User(nil), m.data.users...),
		scoreItems:  append([]household.ScoreItem(nil), m.data.scoreItems...),
		rewardItems: append([]household.RewardItem(nil), m.data.rewardItems...),
		records:     append([]household.ScoreRecord(nil), m.data.records...),
		messages:    append([]household.SecretMessage(nil), m.data.messages...),
	}
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// memoryTxView writes straight into the parent; the parent holds the lock
// and restores its snapshot if the transaction function fails.
type memoryTxView struct {
	parent *Memory
}

func (tv *memoryTxView) Clear(_ context.Context, c household.CollectionName) error {
	if err := tv.parent.takeFaultLocked("clear", c); err != nil {
		return err
	}
	d := &tv.parent.data
	switch c {
	case household.CollectionUsers:
		d.users = nil
	case household.CollectionScoreItems:
		d.scoreItems = nil
	case household.CollectionRewardItems:
		d.rewardItems = nil
	case household.CollectionRecords:
		d.records = nil
	case household.CollectionMessages:
		d.messages = nil
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
	return nil
}

func (tv *memoryTxView) InsertUsers(_ context.Context, users []household.User) error {
	if err := tv.parent.takeFaultLocked("insert", household.CollectionUsers); err != nil {
		return err
	}
	d := &tv.parent.data
	ids := idSet(len(d.users), func(i int) string { return d.users[i].ID })
	for _, u := range users {
		if err := ids.add(u.ID); err != nil {
			return err
		}
	}
	d.users = append(d.users, users...)
	return nil
}

func (tv *memoryTxView) InsertScoreItems(_ context.Context, items []household.ScoreItem) error {
	if err := tv.parent.takeFaultLocked("insert", household.CollectionScoreItems); err != nil {
		return err
	}
	d := &tv.parent.data
	ids := idSet(len(d.scoreItems), func(i int) string { return d.scoreItems[i].ID })
	for _, it := range items {
		if err := ids.add(it.ID); err != nil {
			return err
		}
	}
	d.scoreItems = append(d.scoreItems, items...)
	return nil
}

func (tv *memoryTxView) InsertRewardItems(_ context.Context, items []household.RewardItem) error {
	if err := tv.parent.takeFaultLocked("insert", household.CollectionRewardItems); err != nil {
		return err
	}
	d := &tv.parent.data
	ids := idSet(len(d.rewardItems), func(i int) string { return d.rewardItems[i].ID })
	for _, it := range items {
		if err := ids.add(it.ID); err != nil {
			return err
		}
	}
	d.rewardItems = append(d.rewardItems, items...)
	return nil
}

func (tv *memoryTxView) InsertRecords(_ context.Context, records []household.ScoreRecord) error {
	if err := tv.parent.takeFaultLocked("insert", household.CollectionRecords); err != nil {
		return err
	}
	d := &tv.parent.data
	ids := idSet(len(d.records), func(i int) string { return d.records[i].ID })
	for _, r := range records {
		if err := ids.add(r.ID); err != nil {
			return err
		}
	}
	d.records = append(d.records, records...)
	return nil
}

func (tv *memoryTxView) InsertMessages(_ context.Context, messages []household.SecretMessage) error {
	if err := tv.parent.takeFaultLocked("insert", household.CollectionMessages); err != nil {
		return err
	}
	d := &tv.parent.data
	ids := idSet(len(d.messages), func(i int) string { return d.messages[i].ID })
	for _, msg := range messages {
		if err := ids.add(msg.ID); err != nil {
			return err
		}
	}
	d.messages = append(d.messages, messages...)
	return nil
}

type ids map[string]struct{}

func idSet(n int, at func(int) string) ids {
	s := make(ids, n)
	for i := 0; i < n; i++ {
		s[at(i)] = struct{}{}
	}
	return s
}

func (s ids) add(id string) error {
	if _, dup := s[id]; dup {
		return fmt.Errorf("%w: %q", household.ErrDuplicateID, id)
	}
	s[id] = struct{}{}
	return nil
}
