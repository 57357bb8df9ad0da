// internal/catalog/defaults.go
package catalog

import (
	"math"
	"time"

	"questforge/internal/event"
)

// defaultLevelCount bounds the generated threshold table.
const defaultLevelCount = 50

// Default returns the built-in catalog used when no admin service is
// configured. Level thresholds follow a power curve: reaching level n+1 costs
// floor(100 * n^1.2) more lifetime points than level n.
func Default() *Catalog {
	thresholds := make([]int64, 0, defaultLevelCount)
	var total int64
	for n := 1; n <= defaultLevelCount; n++ {
		total += int64(100 * math.Pow(float64(n), 1.2))
		thresholds = append(thresholds, total)
	}

	return &Catalog{
		Version:         "builtin",
		LevelThresholds: thresholds,
		ActionPoints: map[string]int64{
			"reaction":       2,
			"trivia_correct": 10,
			"trivia_played":  3,
			"daily_login":    5,
			"share":          8,
		},
		Missions: []Mission{
			{
				ID:         "daily-reactions",
				Title:      "React to three stories",
				Type:       MissionDaily,
				Objective:  Objective{EventKind: event.KindUserAction, Action: "reaction", Quantity: 3},
				Reward:     event.RewardSpec{Points: 25},
				AutoAssign: true,
			},
			{
				ID:         "weekly-trivia",
				Title:      "Answer ten trivia questions",
				Type:       MissionWeekly,
				Objective:  Objective{EventKind: event.KindUserAction, Action: "trivia_correct", Quantity: 10},
				Reward:     event.RewardSpec{Points: 150, Multiplier: 1.5, MultiplierWindow: 24 * time.Hour},
				AutoAssign: true,
			},
			{
				ID:        "story-first-choice",
				Title:     "Make your first narrative choice",
				Type:      MissionStory,
				Objective: Objective{EventKind: event.KindNarrativeDecision, Quantity: 1},
				Reward:    event.RewardSpec{Points: 50, NarrativeFragment: "prologue-epilogue"},
			},
			{
				ID:        "one-time-first-purchase",
				Title:     "Buy your first item",
				Type:      MissionOneTime,
				Objective: Objective{EventKind: event.KindPurchase, Quantity: 1},
				Reward:    event.RewardSpec{Points: 100},
			},
		},
		Achievements: []Achievement{
			{
				ID:        "first-thousand",
				Title:     "Collector",
				Condition: Condition{Kind: ConditionLifetimePoints, Threshold: 1000},
				Reward:    event.RewardSpec{Points: 100},
			},
			{
				ID:        "level-ten",
				Title:     "Veteran",
				Condition: Condition{Kind: ConditionLevel, Threshold: 10},
				Reward:    event.RewardSpec{Points: 250},
			},
			{
				ID:        "mission-runner",
				Title:     "Mission Runner",
				Condition: Condition{Kind: ConditionMissionsCompleted, Threshold: 10},
				Reward:    event.RewardSpec{Points: 200},
			},
			{
				ID:        "week-streak",
				Title:     "Regular",
				Condition: Condition{Kind: ConditionStreakDays, Threshold: 7},
				Reward:    event.RewardSpec{Points: 150, NarrativeFragment: "loyalty-scene"},
			},
		},
		DailyTiers: []DailyTier{
			{ID: "common", Weight: 60, Reward: event.RewardSpec{Points: 10}},
			{ID: "uncommon", Weight: 25, Reward: event.RewardSpec{Points: 25}},
			{ID: "rare", Weight: 10, Reward: event.RewardSpec{Points: 60}},
			{ID: "epic", Weight: 4, Reward: event.RewardSpec{Points: 150}},
			{ID: "story", Weight: 1, Reward: event.RewardSpec{NarrativeFragment: "bonus-scene"}},
		},
		StreakBrackets: []StreakBracket{
			{MinDays: 7, Multiplier: 1.25},
			{MinDays: 14, Multiplier: 1.5},
			{MinDays: 30, Multiplier: 2.0},
			{MinDays: 60, Multiplier: 3.0},
		},
		Timezone: "UTC",
	}
}
