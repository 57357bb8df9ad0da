// internal/achievements/implementation.go
package achievements

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"questforge/internal/bus"
	"questforge/internal/catalog"
	"questforge/internal/event"
	"questforge/internal/points"
)

type pairKey struct {
	userID        int64
	achievementID string
}

type evaluator struct {
	templates map[string]*catalog.Achievement
	// index maps an event kind to the achievements whose condition can change
	// when that kind fires, so one event never re-evaluates the whole catalog.
	index map[event.Kind][]*catalog.Achievement

	mu       sync.Mutex
	unlocked map[pairKey]UserAchievement

	snapshot SnapshotFunc
	ledger   points.Ledger
	bus      *bus.Bus
	now      func() time.Time
}

// relevantKinds maps a condition to the event kinds that can advance it.
func relevantKinds(kind catalog.ConditionKind) []event.Kind {
	switch kind {
	case catalog.ConditionLifetimePoints, catalog.ConditionBalance:
		return []event.Kind{event.KindPointsCredited}
	case catalog.ConditionLevel:
		return []event.Kind{event.KindLevelUp}
	case catalog.ConditionMissionsCompleted:
		return []event.Kind{event.KindMissionCompleted}
	case catalog.ConditionStreakDays:
		return []event.Kind{event.KindDailyRewardClaimed}
	default:
		return nil
	}
}

// NewEvaluator indexes the achievement catalog by event kind and subscribes
// to the union of progress-relevant kinds on b.
func NewEvaluator(b *bus.Bus, ledger points.Ledger, snapshot SnapshotFunc, cat *catalog.Catalog) Evaluator {
	if b == nil || ledger == nil || snapshot == nil || cat == nil {
		panic("achievements: missing collaborator")
	}

	e := &evaluator{
		templates: make(map[string]*catalog.Achievement, len(cat.Achievements)),
		index:     make(map[event.Kind][]*catalog.Achievement),
		unlocked:  make(map[pairKey]UserAchievement),
		snapshot:  snapshot,
		ledger:    ledger,
		bus:       b,
		now:       time.Now,
	}
	for i := range cat.Achievements {
		a := &cat.Achievements[i]
		e.templates[a.ID] = a
		kinds := relevantKinds(a.Condition.Kind)
		if len(kinds) == 0 {
			log.Printf("achievements: %q has unsupported condition kind %q, never evaluated", a.ID, a.Condition.Kind)
			continue
		}
		for _, k := range kinds {
			e.index[k] = append(e.index[k], a)
		}
	}

	for kind := range e.index {
		b.Subscribe(kind, "achievements", e.handleEvent)
	}
	return e
}

func (e *evaluator) handleEvent(ctx context.Context, ev event.Event) error {
	userID, ok := subjectUser(ev)
	if !ok {
		return nil
	}

	candidates := e.index[ev.EventKind()]
	if len(candidates) == 0 {
		return nil
	}

	snap := e.snapshot(ctx, userID)
	for _, tpl := range candidates {
		if !conditionMet(tpl.Condition, snap) {
			continue
		}
		e.unlock(ctx, userID, tpl)
	}
	return nil
}

// unlock inserts the (user, achievement) pair exactly once; a racing
// duplicate qualification is a no-op, not an error.
func (e *evaluator) unlock(ctx context.Context, userID int64, tpl *catalog.Achievement) {
	key := pairKey{userID: userID, achievementID: tpl.ID}
	now := e.now()

	e.mu.Lock()
	if _, exists := e.unlocked[key]; exists {
		e.mu.Unlock()
		return
	}
	e.unlocked[key] = UserAchievement{UserID: userID, AchievementID: tpl.ID, UnlockedAt: now}
	e.mu.Unlock()

	if tpl.Reward.Points > 0 {
		if _, err := e.ledger.Credit(ctx, userID, tpl.Reward.Points, "achievement:"+tpl.ID); err != nil {
			log.Printf("achievements: reward credit failed for user %d achievement %s: %v", userID, tpl.ID, err)
		}
	}
	if tpl.Reward.Multiplier >= 1.0 && tpl.Reward.MultiplierWindow > 0 {
		if err := e.ledger.SetMultiplier(ctx, userID, tpl.Reward.Multiplier, tpl.Reward.MultiplierWindow); err != nil {
			log.Printf("achievements: reward multiplier failed for user %d achievement %s: %v", userID, tpl.ID, err)
		}
	}

	e.bus.Publish(ctx, event.AchievementUnlocked{
		Meta:          event.Meta{EmittedAt: now, Source: "achievements"},
		UserID:        userID,
		AchievementID: tpl.ID,
	})
}

// conditionMet evaluates a threshold predicate against the snapshot.
func conditionMet(c catalog.Condition, snap Snapshot) bool {
	switch c.Kind {
	case catalog.ConditionLifetimePoints:
		return snap.LifetimeEarned >= c.Threshold
	case catalog.ConditionBalance:
		return snap.Balance >= c.Threshold
	case catalog.ConditionLevel:
		return int64(snap.Level) >= c.Threshold
	case catalog.ConditionMissionsCompleted:
		return int64(snap.MissionsCompleted) >= c.Threshold
	case catalog.ConditionStreakDays:
		return int64(snap.ConsecutiveDays) >= c.Threshold
	default:
		return false
	}
}

// UnlockedFor lists the user's unlocks ordered by achievement ID.
func (e *evaluator) UnlockedFor(ctx context.Context, userID int64) []UserAchievement {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []UserAchievement
	for key, ua := range e.unlocked {
		if key.userID == userID {
			out = append(out, ua)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out
}

// Unlocked reports whether the user holds the achievement.
func (e *evaluator) Unlocked(ctx context.Context, userID int64, achievementID string) (bool, error) {
	if _, ok := e.templates[achievementID]; !ok {
		return false, fmt.Errorf("achievement %q: %w", achievementID, ErrUnknownAchievement)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, exists := e.unlocked[pairKey{userID: userID, achievementID: achievementID}]
	return exists, nil
}

// subjectUser extracts the user an event concerns.
func subjectUser(ev event.Event) (int64, bool) {
	switch p := ev.(type) {
	case event.PointsCredited:
		return p.UserID, true
	case event.LevelUp:
		return p.UserID, true
	case event.MissionCompleted:
		return p.UserID, true
	case event.DailyRewardClaimed:
		return p.UserID, true
	default:
		return 0, false
	}
}
