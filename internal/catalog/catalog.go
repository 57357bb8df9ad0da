// internal/catalog/catalog.go
package catalog

import (
	"errors"
	"fmt"
	"time"

	"questforge/internal/event"
)

// MissionType classifies a mission template's cadence.
type MissionType string

const (
	MissionDaily   MissionType = "daily"
	MissionWeekly  MissionType = "weekly"
	MissionOneTime MissionType = "one_time"
	MissionEvent   MissionType = "event"
	MissionStory   MissionType = "story"
)

// Objective describes what a mission instance counts. EventKind selects the
// bus events that can match; Action narrows UserAction events to one action
// type (empty matches any). Quantity is the completion threshold.
type Objective struct {
	EventKind event.Kind `json:"event_kind"`
	Action    string     `json:"action,omitempty"`
	Quantity  int        `json:"quantity"`
}

// Mission is an immutable reusable objective template.
type Mission struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Type       MissionType      `json:"type"`
	Objective  Objective        `json:"objective"`
	Reward     event.RewardSpec `json:"reward"`
	ValidFrom  time.Time        `json:"valid_from,omitempty"`
	ValidUntil time.Time        `json:"valid_until,omitempty"`
	AutoAssign bool             `json:"auto_assign,omitempty"`
}

// ConditionKind names the aggregate statistic an unlock predicate reads.
type ConditionKind string

const (
	ConditionLifetimePoints    ConditionKind = "lifetime_points"
	ConditionBalance           ConditionKind = "balance"
	ConditionLevel             ConditionKind = "level"
	ConditionMissionsCompleted ConditionKind = "missions_completed"
	ConditionStreakDays        ConditionKind = "streak_days"
)

// Condition is a threshold predicate over a read-only user snapshot.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Threshold int64         `json:"threshold"`
}

// Achievement is an immutable one-time unlockable.
type Achievement struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Condition Condition        `json:"condition"`
	Reward    event.RewardSpec `json:"reward"`
}

// DailyTier is one weighted entry in the daily reward table.
type DailyTier struct {
	ID     string           `json:"id"`
	Weight int              `json:"weight"`
	Reward event.RewardSpec `json:"reward"`
}

// StreakBracket applies a deterministic multiplier to the credited amount of
// a daily claim once the streak reaches MinDays.
type StreakBracket struct {
	MinDays    int     `json:"min_days"`
	Multiplier float64 `json:"multiplier"`
}

// Catalog is the full configuration surface of the engine. Published by the
// admin/config collaborator and treated as immutable once loaded.
type Catalog struct {
	Version string `json:"version"`

	// LevelThresholds[i] is the lifetime-earned floor of level i+2; an empty
	// prefix means every account starts at level 1.
	LevelThresholds []int64 `json:"level_thresholds"`

	// ActionPoints maps a UserAction action type to its base credit.
	ActionPoints map[string]int64 `json:"action_points"`

	Missions     []Mission     `json:"missions"`
	Achievements []Achievement `json:"achievements"`

	DailyTiers     []DailyTier     `json:"daily_tiers"`
	StreakBrackets []StreakBracket `json:"streak_brackets"`

	// Timezone is the single calendar used for daily claims, e.g. "UTC".
	Timezone string `json:"timezone"`
}

var errCatalogInvalid = errors.New("invalid catalog")

// Validate rejects catalogs that would break engine invariants: unordered
// level thresholds, non-positive objective quantities, duplicate IDs,
// zero-weight daily tables, negative rewards.
func (c *Catalog) Validate() error {
	for i := 1; i < len(c.LevelThresholds); i++ {
		if c.LevelThresholds[i] <= c.LevelThresholds[i-1] {
			return fmt.Errorf("%w: level thresholds must be strictly ascending at index %d", errCatalogInvalid, i)
		}
	}
	for action, pts := range c.ActionPoints {
		if pts < 0 {
			return fmt.Errorf("%w: negative points for action %q", errCatalogInvalid, action)
		}
	}

	missionIDs := make(map[string]struct{}, len(c.Missions))
	for _, m := range c.Missions {
		if m.ID == "" {
			return fmt.Errorf("%w: mission with empty id", errCatalogInvalid)
		}
		if _, dup := missionIDs[m.ID]; dup {
			return fmt.Errorf("%w: duplicate mission id %q", errCatalogInvalid, m.ID)
		}
		missionIDs[m.ID] = struct{}{}
		if m.Objective.Quantity <= 0 {
			return fmt.Errorf("%w: mission %q objective quantity must be positive", errCatalogInvalid, m.ID)
		}
		if m.Objective.EventKind == "" {
			return fmt.Errorf("%w: mission %q objective has no event kind", errCatalogInvalid, m.ID)
		}
		if err := validReward(m.Reward); err != nil {
			return fmt.Errorf("%w: mission %q: %v", errCatalogInvalid, m.ID, err)
		}
	}

	achievementIDs := make(map[string]struct{}, len(c.Achievements))
	for _, a := range c.Achievements {
		if a.ID == "" {
			return fmt.Errorf("%w: achievement with empty id", errCatalogInvalid)
		}
		if _, dup := achievementIDs[a.ID]; dup {
			return fmt.Errorf("%w: duplicate achievement id %q", errCatalogInvalid, a.ID)
		}
		achievementIDs[a.ID] = struct{}{}
		if a.Condition.Kind == "" || a.Condition.Threshold <= 0 {
			return fmt.Errorf("%w: achievement %q has an empty condition", errCatalogInvalid, a.ID)
		}
		if err := validReward(a.Reward); err != nil {
			return fmt.Errorf("%w: achievement %q: %v", errCatalogInvalid, a.ID, err)
		}
	}

	if len(c.DailyTiers) > 0 {
		total := 0
		for _, tier := range c.DailyTiers {
			if tier.Weight < 0 {
				return fmt.Errorf("%w: daily tier %q has negative weight", errCatalogInvalid, tier.ID)
			}
			if err := validReward(tier.Reward); err != nil {
				return fmt.Errorf("%w: daily tier %q: %v", errCatalogInvalid, tier.ID, err)
			}
			total += tier.Weight
		}
		if total == 0 {
			return fmt.Errorf("%w: daily tier weights sum to zero", errCatalogInvalid)
		}
	}
	for i := 1; i < len(c.StreakBrackets); i++ {
		if c.StreakBrackets[i].MinDays <= c.StreakBrackets[i-1].MinDays {
			return fmt.Errorf("%w: streak brackets must be ascending by min_days", errCatalogInvalid)
		}
	}
	for _, b := range c.StreakBrackets {
		if b.Multiplier < 1.0 {
			return fmt.Errorf("%w: streak bracket multiplier below 1.0", errCatalogInvalid)
		}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", errCatalogInvalid, c.Timezone, err)
		}
	}
	return nil
}

func validReward(r event.RewardSpec) error {
	if r.Points < 0 {
		return errors.New("negative reward points")
	}
	if r.Multiplier != 0 && r.Multiplier < 1.0 {
		return errors.New("reward multiplier below 1.0")
	}
	if r.Multiplier >= 1.0 && r.MultiplierWindow <= 0 {
		return errors.New("reward multiplier without a window")
	}
	return nil
}

// Location resolves the configured claim timezone, defaulting to UTC.
func (c *Catalog) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
