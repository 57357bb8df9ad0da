// internal/engine/engine_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/catalog"
	"questforge/internal/event"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Version:         "test-1",
		LevelThresholds: []int64{15, 100},
		ActionPoints: map[string]int64{
			"reaction":           10,
			"narrative_decision": 5,
		},
		Missions: []catalog.Mission{
			{
				ID:        "react-thrice",
				Type:      catalog.MissionOneTime,
				Objective: catalog.Objective{EventKind: event.KindUserAction, Action: "reaction", Quantity: 3},
				Reward:    event.RewardSpec{Points: 30},
			},
		},
		Achievements: []catalog.Achievement{
			{
				ID:        "half-century",
				Condition: catalog.Condition{Kind: catalog.ConditionLifetimePoints, Threshold: 50},
				Reward:    event.RewardSpec{Points: 5},
			},
		},
		DailyTiers: []catalog.DailyTier{
			{ID: "common", Weight: 1, Reward: event.RewardSpec{Points: 10}},
		},
		Timezone: "UTC",
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testCatalog(), Options{Rand: func(int) int { return 0 }})
	require.NoError(t, err)
	return e
}

func TestNewRejectsInvalidCatalog(t *testing.T) {
	cat := testCatalog()
	cat.LevelThresholds = []int64{100, 100}

	_, err := New(cat, Options{})
	assert.Error(t, err, "construction fails fast, not the first call")
}

func TestNewRejectsNilCatalog(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

// A 10-point action under an active 2.0 multiplier credits 20 in one dispatch
// cycle; with the level threshold at 15 the same cycle also emits the level-up.
func TestMultipliedCreditAndLevelUpInOneCycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var credits []event.PointsCredited
	e.Bus().Subscribe(event.KindPointsCredited, "test", func(ctx context.Context, ev event.Event) error {
		credits = append(credits, ev.(event.PointsCredited))
		return nil
	})
	var levelUps []event.LevelUp
	e.Bus().Subscribe(event.KindLevelUp, "test", func(ctx context.Context, ev event.Event) error {
		levelUps = append(levelUps, ev.(event.LevelUp))
		return nil
	})

	require.NoError(t, e.Ledger().SetMultiplier(ctx, 1, 2.0, time.Hour))
	e.Publish(ctx, event.UserAction{UserID: 1, ActionType: "reaction"})

	acct := e.Ledger().Account(ctx, 1)
	assert.Equal(t, int64(20), acct.Balance)
	assert.Equal(t, 2, acct.Level)

	require.Len(t, credits, 1)
	assert.Equal(t, int64(20), credits[0].Amount)
	require.Len(t, levelUps, 1)
	assert.Equal(t, 1, levelUps[0].OldLevel)
	assert.Equal(t, 2, levelUps[0].NewLevel)
}

func TestUnknownActionEarnsNothingButDrivesMissions(t *testing.T) {
	cat := testCatalog()
	cat.Missions[0].Objective.Action = "mystery"
	e, err := New(cat, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.Missions().Assign(ctx, 1, "react-thrice")
	require.NoError(t, err)

	e.Publish(ctx, event.UserAction{UserID: 1, ActionType: "mystery"})

	assert.Zero(t, e.Ledger().Account(ctx, 1).Balance)
	instances := e.Missions().InstancesFor(ctx, 1)
	require.Len(t, instances, 1)
	assert.Equal(t, 1, instances[0].Progress)
}

// Mission completion, its reward credit and the achievement unlock all settle
// within the dispatch cycle of the triggering action.
func TestMissionRewardCascadesIntoAchievement(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Missions().Assign(ctx, 1, "react-thrice")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		e.Publish(ctx, event.UserAction{UserID: 1, ActionType: "reaction"})
	}

	// 3 actions * 10 base + 30 mission reward + 5 achievement reward. The
	// mission reward lands before the third accrual credit, so the 50-point
	// lifetime threshold is crossed inside the same dispatch cycle.
	acct := e.Ledger().Account(ctx, 1)
	assert.Equal(t, int64(65), acct.Balance)

	unlocked, err := e.Achievements().Unlocked(ctx, 1, "half-century")
	require.NoError(t, err)
	assert.True(t, unlocked)
	assert.Equal(t, 1, e.Missions().CompletedCount(ctx, 1))
}

func TestPurchaseDebitsAndDeclinesGracefully(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Publish(ctx, event.UserAction{UserID: 1, ActionType: "reaction"})
	require.Equal(t, int64(10), e.Ledger().Account(ctx, 1).Balance)

	e.Publish(ctx, event.Purchase{UserID: 1, ItemID: "sticker", Cost: 4})
	assert.Equal(t, int64(6), e.Ledger().Account(ctx, 1).Balance)

	// Declined purchases leave the balance untouched and do not fail dispatch.
	e.Publish(ctx, event.Purchase{UserID: 1, ItemID: "poster", Cost: 100})
	assert.Equal(t, int64(6), e.Ledger().Account(ctx, 1).Balance)
}

func TestNarrativeDecisionCredits(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Publish(ctx, event.NarrativeDecision{UserID: 2, FragmentID: "f1", ChoiceID: "a"})

	assert.Equal(t, int64(5), e.Ledger().Account(ctx, 2).Balance)
}

func TestDailyClaimFlowsThroughLedger(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	claim, err := e.Daily().Claim(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "common", claim.RewardID)
	assert.Equal(t, int64(10), e.Ledger().Account(ctx, 3).Balance)
}

func TestStatsReflectBusCounters(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.Publish(ctx, event.UserAction{UserID: 1, ActionType: "reaction"})

	stats := e.Stats()
	assert.Equal(t, "test-1", stats.CatalogVersion)
	assert.Greater(t, stats.Published, int64(1), "secondary events count too")
	assert.Zero(t, stats.HandlerErrors)
}
