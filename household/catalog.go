package household

import "strings"

// Snapshot mutations. Each helper takes the current snapshot and returns a
// new one; the input is never modified. Persisting the result is the
// caller's job (state.Facade.SaveState).

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks a score item definition.
func (it ScoreItem) Validate() error {
	if strings.TrimSpace(it.Label) == "" {
		return &ValidationError{Field: "label", Message: "must not be empty"}
	}
	if it.Points < 0 {
		return &ValidationError{Field: "points", Message: "must not be negative"}
	}
	if !it.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be POSITIVE or NEGATIVE"}
	}
	return nil
}

// Validate checks a reward item definition.
func (it RewardItem) Validate() error {
	if strings.TrimSpace(it.Label) == "" {
		return &ValidationError{Field: "label", Message: "must not be empty"}
	}
	if it.Points < 0 {
		return &ValidationError{Field: "points", Message: "must not be negative"}
	}
	return nil
}

// Validate checks a user.
func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if !u.Role.Valid() {
		return &ValidationError{Field: "role", Message: "must be PARENT or CHILD"}
	}
	return nil
}

// =============================================================================
// SCORE ITEMS
// =============================================================================

// UpsertScoreItem adds item, or replaces the item with the same id. An empty
// id gets a fresh one.
func UpsertScoreItem(s AppState, item ScoreItem) (AppState, ScoreItem, error) {
	if err := item.Validate(); err != nil {
		return s, ScoreItem{}, err
	}
	next := s.Clone()
	if item.ID == "" {
		item.ID = NewID()
	}
	for i := range next.ScoreItems {
		if next.ScoreItems[i].ID == item.ID {
			next.ScoreItems[i] = item
			return next, item, nil
		}
	}
	next.ScoreItems = append(next.ScoreItems, item)
	return next, item, nil
}

// DeleteScoreItem removes the item. Existing records keep their
// denormalized item name.
func DeleteScoreItem(s AppState, id string) (AppState, error) {
	next := s.Clone()
	out := next.ScoreItems[:0]
	found := false
	for _, it := range next.ScoreItems {
		if it.ID == id {
			found = true
			continue
		}
		out = append(out, it)
	}
	if !found {
		return s, ErrNotFound
	}
	next.ScoreItems = out
	return next, nil
}

// =============================================================================
// REWARD ITEMS
// =============================================================================

// UpsertRewardItem adds reward, or replaces the reward with the same id.
func UpsertRewardItem(s AppState, reward RewardItem) (AppState, RewardItem, error) {
	if err := reward.Validate(); err != nil {
		return s, RewardItem{}, err
	}
	next := s.Clone()
	if reward.ID == "" {
		reward.ID = NewID()
	}
	for i := range next.RewardItems {
		if next.RewardItems[i].ID == reward.ID {
			next.RewardItems[i] = reward
			return next, reward, nil
		}
	}
	next.RewardItems = append(next.RewardItems, reward)
	return next, reward, nil
}

// DeleteRewardItem removes the reward.
func DeleteRewardItem(s AppState, id string) (AppState, error) {
	next := s.Clone()
	out := next.RewardItems[:0]
	found := false
	for _, it := range next.RewardItems {
		if it.ID == id {
			found = true
			continue
		}
		out = append(out, it)
	}
	if !found {
		return s, ErrNotFound
	}
	next.RewardItems = out
	return next, nil
}

// =============================================================================
// USERS
// =============================================================================

// UpdateUser edits a user's name and avatar. Role and id are immutable and
// users are never deleted through this path.
func UpdateUser(s AppState, id, name, avatar string) (AppState, User, error) {
	next := s.Clone()
	for i := range next.Users {
		if next.Users[i].ID != id {
			continue
		}
		u := next.Users[i]
		if name != "" {
			u.Name = name
		}
		if avatar != "" {
			u.Avatar = avatar
		}
		if err := u.Validate(); err != nil {
			return s, User{}, err
		}
		next.Users[i] = u
		return next, u, nil
	}
	return s, User{}, ErrNotFound
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// LogBehavior appends a behavior record for childID using itemID.
func LogBehavior(s AppState, childID, itemID, creatorID, note string, at Timestamp) (AppState, ScoreRecord, error) {
	child, creator, err := recordParties(s, childID, creatorID)
	if err != nil {
		return s, ScoreRecord{}, err
	}
	item, ok := s.FindScoreItem(itemID)
	if !ok {
		return s, ScoreRecord{}, ErrNotFound
	}
	rec := NewBehaviorRecord(child, item, creator, note, at)
	next := s.Clone()
	next.Records = append(next.Records, rec)
	return next, rec, nil
}

// RedeemReward appends a redemption record. It does not check the balance;
// use CheckRedeemable first where the caller must refuse overspending.
func RedeemReward(s AppState, childID, rewardID, creatorID string, at Timestamp) (AppState, ScoreRecord, error) {
	child, creator, err := recordParties(s, childID, creatorID)
	if err != nil {
		return s, ScoreRecord{}, err
	}
	reward, ok := s.FindRewardItem(rewardID)
	if !ok {
		return s, ScoreRecord{}, ErrNotFound
	}
	rec := NewRedemptionRecord(child, reward, creator, at)
	next := s.Clone()
	next.Records = append(next.Records, rec)
	return next, rec, nil
}

// CheckRedeemable returns an InsufficientPointsError when childID cannot
// afford rewardID in s.
func CheckRedeemable(s AppState, childID, rewardID string) error {
	reward, ok := s.FindRewardItem(rewardID)
	if !ok {
		return ErrNotFound
	}
	score := CalculateScore(childID, s.Records)
	if !CanRedeem(score, reward) {
		return &InsufficientPointsError{ChildID: childID, RewardID: rewardID, Score: score, Cost: reward.Points}
	}
	return nil
}

func recordParties(s AppState, childID, creatorID string) (User, User, error) {
	child, ok := s.FindUser(childID)
	if !ok {
		return User{}, User{}, ErrNotFound
	}
	if !child.IsChild() {
		return User{}, User{}, &ValidationError{Field: "childId", Message: "user is not a child"}
	}
	creator, ok := s.FindUser(creatorID)
	if !ok {
		return User{}, User{}, ErrNotFound
	}
	return child, creator, nil
}
