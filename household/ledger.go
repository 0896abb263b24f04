/*
ledger.go - Score ledger semantics

PURPOSE:
  The records collection is the single source of truth for scores. A child's
  score is never stored; it is recomputed by summing PointsChange over the
  child's records every time it is needed.

CRITICAL INVARIANTS:
  1. IMMUTABLE: Once created, a ScoreRecord is never edited.
  2. SIGN AT CREATION: Item magnitudes are unsigned; the delta sign is fixed
     when the record is built and never re-derived from the item later.
  3. NO CLAMPING: Negative totals are valid. The ledger never rejects a
     record because of the resulting balance.
  4. PRUNE ONLY: The only deletion is bulk retention pruning by age.

RECORD KINDS:
  Behavior:   +points for a POSITIVE item, -points for a NEGATIVE item.
  Redemption: always -reward.Points, ItemName prefixed with RedemptionPrefix.
  The prefix is the only persisted discriminator between the two kinds.

EXAMPLE:
  records: [c1:+10, c1:-3, c2:+5]
  CalculateScore("c1", records) = 7
  CalculateScore("c2", records) = 5

SEE ALSO:
  - types.go: ScoreRecord
  - persistence/engine.go: PruneOlderThan
*/
package household

import (
	"strings"

	"github.com/google/uuid"
)

// RedemptionPrefix marks a record's ItemName as a reward redemption.
const RedemptionPrefix = "兌換："

// RedemptionNote is the note attached to every redemption record.
const RedemptionNote = "獎勵兌換"

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// RECORD CONSTRUCTION
// =============================================================================

// Delta returns the signed change this item applies to a score.
func (it ScoreItem) Delta() int {
	if it.Type == ScorePositive {
		return it.Points
	}
	return -it.Points
}

// NewBehaviorRecord builds the ledger entry for logging item against child.
func NewBehaviorRecord(child User, item ScoreItem, creator User, note string, at Timestamp) ScoreRecord {
	return ScoreRecord{
		ID:            NewID(),
		ChildID:       child.ID,
		ChildName:     child.Name,
		ItemID:        item.ID,
		ItemName:      item.Label,
		PointsChange:  item.Delta(),
		Timestamp:     at,
		Note:          note,
		CreatedByID:   creator.ID,
		CreatedByName: creator.Name,
	}
}

// NewRedemptionRecord builds the ledger entry for child spending points on reward.
func NewRedemptionRecord(child User, reward RewardItem, creator User, at Timestamp) ScoreRecord {
	return ScoreRecord{
		ID:            NewID(),
		ChildID:       child.ID,
		ChildName:     child.Name,
		ItemID:        reward.ID,
		ItemName:      RedemptionPrefix + reward.Label,
		PointsChange:  -reward.Points,
		Timestamp:     at,
		Note:          RedemptionNote,
		CreatedByID:   creator.ID,
		CreatedByName: creator.Name,
	}
}

// IsRedemption reports whether r was produced by a reward redemption.
func (r ScoreRecord) IsRedemption() bool {
	return strings.HasPrefix(r.ItemName, RedemptionPrefix)
}

// =============================================================================
// SCORE DERIVATION
// =============================================================================

// CalculateScore sums PointsChange over the records belonging to childID.
// Pure: no I/O, no caching.
func CalculateScore(childID string, records []ScoreRecord) int {
	total := 0
	for _, r := range records {
		if r.ChildID == childID {
			total += r.PointsChange
		}
	}
	return total
}

// Scores computes every child's score in a single pass.
func Scores(records []ScoreRecord) map[string]int {
	out := make(map[string]int)
	for _, r := range records {
		out[r.ChildID] += r.PointsChange
	}
	return out
}

// CanRedeem reports whether a child with score can afford reward.
func CanRedeem(score int, reward RewardItem) bool {
	return score >= reward.Points
}

// =============================================================================
// SCOREBOARD - per-child totals in one pass
// =============================================================================

// Scoreboard holds every child's total, summed once from the record list.
// Build a new one whenever the records change.
type Scoreboard struct {
	totals map[string]int
}

// NewScoreboard builds totals from records.
func NewScoreboard(records []ScoreRecord) *Scoreboard {
	return &Scoreboard{totals: Scores(records)}
}

// Score returns the total for childID. Children without records score 0.
func (b *Scoreboard) Score(childID string) int {
	return b.totals[childID]
}
