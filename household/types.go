/*
types.go - Core entities of the household points ledger

PURPOSE:
  Defines the five persisted entity kinds and the AppState snapshot that
  bundles them. These are the only shapes that ever cross the storage
  boundary, and their JSON tags are the backup/restore interchange format.

ENTITIES:
  User:          family member (PARENT or CHILD)
  ScoreItem:     behavior definition with a non-negative magnitude and polarity
  RewardItem:    redeemable reward with a non-negative cost
  ScoreRecord:   immutable ledger entry (signed delta)
  SecretMessage: child-to-parent note with a one-way read flag

SIGN CONVENTION:
  ScoreItem.Points and RewardItem.Points are ALWAYS magnitudes (>= 0).
  The sign is applied once, when a ScoreRecord is created (see ledger.go).
  ScoreRecord.PointsChange is the only signed quantity in the model.

DENORMALIZATION:
  ScoreRecord carries child/item/creator names and SecretMessage carries the
  sender name, so history stays readable after a rename or delete.

SEE ALSO:
  - ledger.go: Record construction and score derivation
  - schema.go: Collection descriptors
  - store.go: Persistence interface
*/
package household

import "time"

// =============================================================================
// ENUMS
// =============================================================================

// Role distinguishes parents (catalog owners) from children (score holders).
type Role string

const (
	RoleParent Role = "PARENT"
	RoleChild  Role = "CHILD"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// ScoreType is the polarity of a ScoreItem.
type ScoreType string

const (
	ScorePositive ScoreType = "POSITIVE"
	ScoreNegative ScoreType = "NEGATIVE"
)

func (t ScoreType) Valid() bool {
	return t == ScorePositive || t == ScoreNegative
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// Timestamp is milliseconds since the Unix epoch. Stored and exchanged as a
// plain integer so existing backups remain readable.
type Timestamp int64

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return TimestampOf(time.Now())
}

// TimestampOf converts t to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts ts back to a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

// Before reports whether ts is strictly earlier than other.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts < other
}

// DaysAgo returns the Timestamp `days` whole days (86 400 000 ms each) before ts.
func (ts Timestamp) DaysAgo(days int) Timestamp {
	return ts - Timestamp(int64(days)*MillisPerDay)
}

// MillisPerDay is the retention arithmetic unit. Calendar days and DST are
// deliberately ignored.
const MillisPerDay int64 = 24 * 60 * 60 * 1000

// =============================================================================
// ENTITIES
// =============================================================================

// User is a member of the household.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar"`
}

// IsChild reports whether u accrues a score.
func (u User) IsChild() bool { return u.Role == RoleChild }

// ScoreItem is a behavior definition. Points is a magnitude; Type carries the sign.
type ScoreItem struct {
	ID     string    `json:"id"`
	Label  string    `json:"label"`
	Points int       `json:"points"`
	Type   ScoreType `json:"type"`
	Icon   string    `json:"icon,omitempty"`
}

// RewardItem is something a child can spend points on. Points is the cost.
type RewardItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Points int    `json:"points"`
	Icon   string `json:"icon,omitempty"`
}

// ScoreRecord is one immutable ledger entry.
type ScoreRecord struct {
	ID            string    `json:"id"`
	ChildID       string    `json:"childId"`
	ChildName     string    `json:"childName"`
	ItemID        string    `json:"itemId"`
	ItemName      string    `json:"itemName"`
	PointsChange  int       `json:"pointsChange"`
	Timestamp     Timestamp `json:"timestamp"`
	Note          string    `json:"note,omitempty"`
	CreatedByID   string    `json:"createdById"`
	CreatedByName string    `json:"createdByName"`
}

// SecretMessage is a note sent by a child. IsRead only ever flips false -> true.
type SecretMessage struct {
	ID            string    `json:"id"`
	FromChildID   string    `json:"fromChildId"`
	FromChildName string    `json:"fromChildName"`
	Content       string    `json:"content"`
	Timestamp     Timestamp `json:"timestamp"`
	IsRead        bool      `json:"isRead"`
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// AppState is the unit of load and save: every collection at one instant.
type AppState struct {
	Users       []User          `json:"users"`
	ScoreItems  []ScoreItem     `json:"scoreItems"`
	RewardItems []RewardItem    `json:"rewardItems"`
	Records     []ScoreRecord   `json:"records"`
	Messages    []SecretMessage `json:"messages"`
}

// Normalize replaces nil collections with empty ones so the snapshot always
// serializes as arrays, never null.
func (s AppState) Normalize() AppState {
	if s.Users == nil {
		s.Users = []User{}
	}
	if s.ScoreItems == nil {
		s.ScoreItems = []ScoreItem{}
	}
	if s.RewardItems == nil {
		s.RewardItems = []RewardItem{}
	}
	if s.Records == nil {
		s.Records = []ScoreRecord{}
	}
	if s.Messages == nil {
		s.Messages = []SecretMessage{}
	}
	return s
}

// Clone returns a deep copy. Snapshots are values; callers that derive a new
// snapshot must never share backing arrays with the old one.
func (s AppState) Clone() AppState {
	return AppState{
		Users:       append([]User{}, s.Users...),
		ScoreItems:  append([]ScoreItem{}, s.ScoreItems...),
		RewardItems: append([]RewardItem{}, s.RewardItems...),
		Records:     append([]ScoreRecord{}, s.Records...),
		Messages:    append([]SecretMessage{}, s.Messages...),
	}
}

// Children returns the users with the CHILD role, in snapshot order.
func (s AppState) Children() []User {
	var out []User
	for _, u := range s.Users {
		if u.IsChild() {
			out = append(out, u)
		}
	}
	return out
}

// FindUser looks up a user by id.
func (s AppState) FindUser(id string) (User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// FindScoreItem looks up a score item by id.
func (s AppState) FindScoreItem(id string) (ScoreItem, bool) {
	for _, it := range s.ScoreItems {
		if it.ID == id {
			return it, true
		}
	}
	return ScoreItem{}, false
}

// FindRewardItem looks up a reward item by id.
func (s AppState) FindRewardItem(id string) (RewardItem, bool) {
	for _, it := range s.RewardItems {
		if it.ID == id {
			return it, true
		}
	}
	return RewardItem{}, false
}
