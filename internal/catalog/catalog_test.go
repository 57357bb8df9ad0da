// internal/catalog/catalog_test.go
package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/event"
)

func validCatalog() *Catalog {
	return &Catalog{
		Version:         "v1",
		LevelThresholds: []int64{100, 300},
		ActionPoints:    map[string]int64{"reaction": 2},
		Missions: []Mission{
			{
				ID:        "m1",
				Type:      MissionDaily,
				Objective: Objective{EventKind: event.KindUserAction, Action: "reaction", Quantity: 3},
				Reward:    event.RewardSpec{Points: 10},
			},
		},
		Achievements: []Achievement{
			{ID: "a1", Condition: Condition{Kind: ConditionLifetimePoints, Threshold: 100}},
		},
		DailyTiers: []DailyTier{
			{ID: "common", Weight: 90, Reward: event.RewardSpec{Points: 5}},
			{ID: "rare", Weight: 10, Reward: event.RewardSpec{Points: 25}},
		},
		StreakBrackets: []StreakBracket{
			{MinDays: 7, Multiplier: 1.25},
			{MinDays: 30, Multiplier: 2.0},
		},
		Timezone: "UTC",
	}
}

func TestValidateAcceptsWellFormedCatalog(t *testing.T) {
	assert.NoError(t, validCatalog().Validate())
}

func TestValidateDefaultCatalog(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Catalog)
	}{
		{"non-ascending thresholds", func(c *Catalog) { c.LevelThresholds = []int64{100, 100} }},
		{"descending thresholds", func(c *Catalog) { c.LevelThresholds = []int64{300, 100} }},
		{"negative action points", func(c *Catalog) { c.ActionPoints["reaction"] = -1 }},
		{"mission empty id", func(c *Catalog) { c.Missions[0].ID = "" }},
		{"duplicate mission id", func(c *Catalog) { c.Missions = append(c.Missions, c.Missions[0]) }},
		{"zero objective quantity", func(c *Catalog) { c.Missions[0].Objective.Quantity = 0 }},
		{"missing objective kind", func(c *Catalog) { c.Missions[0].Objective.EventKind = "" }},
		{"negative mission reward", func(c *Catalog) { c.Missions[0].Reward.Points = -5 }},
		{"sub-1.0 reward multiplier", func(c *Catalog) {
			c.Missions[0].Reward.Multiplier = 0.5
			c.Missions[0].Reward.MultiplierWindow = time.Hour
		}},
		{"multiplier without window", func(c *Catalog) { c.Missions[0].Reward.Multiplier = 1.5 }},
		{"duplicate achievement id", func(c *Catalog) { c.Achievements = append(c.Achievements, c.Achievements[0]) }},
		{"empty achievement condition", func(c *Catalog) { c.Achievements[0].Condition = Condition{} }},
		{"negative tier weight", func(c *Catalog) { c.DailyTiers[0].Weight = -1 }},
		{"zero total tier weight", func(c *Catalog) {
			for i := range c.DailyTiers {
				c.DailyTiers[i].Weight = 0
			}
		}},
		{"unordered streak brackets", func(c *Catalog) { c.StreakBrackets[1].MinDays = 7 }},
		{"sub-1.0 streak multiplier", func(c *Catalog) { c.StreakBrackets[0].Multiplier = 0.9 }},
		{"bogus timezone", func(c *Catalog) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCatalog()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	c := &Catalog{}
	assert.Equal(t, time.UTC, c.Location())

	c.Timezone = "Europe/Berlin"
	loc := c.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "Europe/Berlin", loc.String())
}
