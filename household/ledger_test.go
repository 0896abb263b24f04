package household_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushbq/Familypoints-Pages/household"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	parent = household.User{ID: "parent_1", Name: "爸爸/媽媽", Role: household.RoleParent}
	alice  = household.User{ID: "child_1", Name: "丞鈞", Role: household.RoleChild}
)

func rec(childID string, delta int) household.ScoreRecord {
	return household.ScoreRecord{ID: household.NewID(), ChildID: childID, PointsChange: delta}
}

// =============================================================================
// SCORE DERIVATION
// =============================================================================

func TestCalculateScore_SumsOnlyThatChild(t *testing.T) {
	records := []household.ScoreRecord{
		rec("child_1", 10),
		rec("child_2", 20),
		rec("child_1", -5),
		rec("child_1", 30),
		rec("child_2", -50),
	}

	assert.Equal(t, 35, household.CalculateScore("child_1", records))
	assert.Equal(t, -30, household.CalculateScore("child_2", records), "negative totals are allowed")
	assert.Equal(t, 0, household.CalculateScore("nobody", records))
	assert.Equal(t, 0, household.CalculateScore("child_1", nil))
}

func TestCalculateScore_OrderIndependent(t *testing.T) {
	records := []household.ScoreRecord{rec("child_1", 10), rec("child_1", -3), rec("child_1", 7)}
	reversed := []household.ScoreRecord{records[2], records[1], records[0]}

	assert.Equal(t,
		household.CalculateScore("child_1", records),
		household.CalculateScore("child_1", reversed))
}

func TestScores_MatchesCalculateScore(t *testing.T) {
	records := []household.ScoreRecord{rec("child_1", 10), rec("child_2", 5), rec("child_1", -20)}
	scores := household.Scores(records)

	for _, id := range []string{"child_1", "child_2"} {
		assert.Equal(t, household.CalculateScore(id, records), scores[id], id)
	}
}

func TestScoreboard(t *testing.T) {
	records := []household.ScoreRecord{rec("child_1", 10), rec("child_2", 5), rec("child_1", -4)}
	board := household.NewScoreboard(records)

	assert.Equal(t, 6, board.Score("child_1"))
	assert.Equal(t, 5, board.Score("child_2"))
	assert.Zero(t, board.Score("nobody"))
}

// =============================================================================
// RECORD CONSTRUCTION
// =============================================================================

func TestNewBehaviorRecord_SignFollowsType(t *testing.T) {
	at := household.Timestamp(1_700_000_000_000)

	tests := []struct {
		name string
		item household.ScoreItem
		want int
	}{
		{"positive", household.ScoreItem{ID: "item_1", Label: "做家事", Points: 10, Type: household.ScorePositive}, 10},
		{"negative", household.ScoreItem{ID: "item_7", Label: "欺負對方", Points: 30, Type: household.ScoreNegative}, -30},
		{"zero", household.ScoreItem{ID: "item_0", Label: "nothing", Points: 0, Type: household.ScoreNegative}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := household.NewBehaviorRecord(alice, tt.item, parent, "note", at)
			assert.Equal(t, tt.want, r.PointsChange)
			assert.Equal(t, tt.item.Label, r.ItemName)
			assert.Equal(t, alice.Name, r.ChildName)
			assert.Equal(t, parent.Name, r.CreatedByName)
			assert.Equal(t, at, r.Timestamp)
			assert.NotEmpty(t, r.ID)
			assert.False(t, r.IsRedemption())
		})
	}
}

func TestNewRedemptionRecord(t *testing.T) {
	reward := household.RewardItem{ID: "reward_1", Label: "玩 Switch (30分)", Points: 50}

	r := household.NewRedemptionRecord(alice, reward, parent, 42)

	assert.Equal(t, -50, r.PointsChange)
	assert.Equal(t, "兌換：玩 Switch (30分)", r.ItemName)
	assert.Equal(t, household.RedemptionNote, r.Note)
	assert.Equal(t, reward.ID, r.ItemID)
	assert.True(t, r.IsRedemption())
}

func TestRedemptionThenScore(t *testing.T) {
	// GIVEN: child earned 60
	// WHEN: redeeming a 50-point reward
	// THEN: score drops to 10
	s := household.DefaultCatalog()
	var err error
	for i := 0; i < 3; i++ {
		s, _, err = household.LogBehavior(s, "child_1", "item_2", "parent_1", "", 1)
		require.NoError(t, err)
	}
	require.NoError(t, household.CheckRedeemable(s, "child_1", "reward_1"))

	s, _, err = household.RedeemReward(s, "child_1", "reward_1", "parent_1", 2)
	require.NoError(t, err)

	assert.Equal(t, 10, household.CalculateScore("child_1", s.Records))
}

func TestCheckRedeemable(t *testing.T) {
	s := household.DefaultCatalog()

	err := household.CheckRedeemable(s, "child_2", "reward_3")
	var ipe *household.InsufficientPointsError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, 0, ipe.Score)
	assert.Equal(t, 20, ipe.Cost)
	assert.ErrorIs(t, err, household.ErrInsufficientPoints)

	assert.ErrorIs(t, household.CheckRedeemable(s, "child_2", "reward_x"), household.ErrNotFound)

	// The ledger itself accepts the overspend.
	next, _, err := household.RedeemReward(s, "child_2", "reward_3", "parent_1", 1)
	require.NoError(t, err)
	assert.Equal(t, -20, household.CalculateScore("child_2", next.Records))
}

func TestCanRedeem(t *testing.T) {
	reward := household.RewardItem{Points: 30}
	assert.True(t, household.CanRedeem(30, reward))
	assert.True(t, household.CanRedeem(31, reward))
	assert.False(t, household.CanRedeem(29, reward))
}
