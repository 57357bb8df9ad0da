// internal/dailyreward/implementation.go
package dailyreward

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"questforge/internal/bus"
	"questforge/internal/catalog"
	"questforge/internal/event"
	"questforge/internal/points"
)

// RandFunc returns a uniform value in [0, n). Injected so tier selection is
// deterministic under test; reward magnitude is a pure function of the streak
// and independent of this randomness.
type RandFunc func(n int) int

type streak struct {
	mu              sync.Mutex
	consecutiveDays int
	lastClaimDate   time.Time // midnight in loc
}

type engine struct {
	tiers       []catalog.DailyTier
	totalWeight int
	brackets    []catalog.StreakBracket
	loc         *time.Location

	mu    sync.Mutex
	users map[int64]*streak

	ledger points.Ledger
	bus    *bus.Bus
	rng    RandFunc
	now    func() time.Time
}

// NewEngine wires the daily reward engine. rng may be nil, defaulting to
// math/rand seeded by the global source.
func NewEngine(b *bus.Bus, ledger points.Ledger, cat *catalog.Catalog, rng RandFunc) Engine {
	if b == nil || ledger == nil || cat == nil {
		panic("dailyreward: missing collaborator")
	}
	if rng == nil {
		rng = rand.Intn
	}

	total := 0
	for _, t := range cat.DailyTiers {
		total += t.Weight
	}

	return &engine{
		tiers:       append([]catalog.DailyTier(nil), cat.DailyTiers...),
		totalWeight: total,
		brackets:    append([]catalog.StreakBracket(nil), cat.StreakBrackets...),
		loc:         cat.Location(),
		users:       make(map[int64]*streak),
		ledger:      ledger,
		bus:         b,
		rng:         rng,
		now:         time.Now,
	}
}

func (e *engine) state(userID int64) *streak {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.users[userID]
	if !ok {
		s = &streak{}
		e.users[userID] = s
	}
	return s
}

// day truncates t to midnight in the engine's single configured timezone.
// One global calendar prevents drift-based double claims.
func (e *engine) day(t time.Time) time.Time {
	local := t.In(e.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)
}

// CanClaim is true iff no claim is recorded for the current calendar day.
func (e *engine) CanClaim(ctx context.Context, userID int64) bool {
	s := e.state(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastClaimDate.Equal(e.day(e.now()))
}

// Claim performs the daily claim: streak bookkeeping, weighted tier
// selection, streak-multiplied credit, DailyRewardClaimed emission.
func (e *engine) Claim(ctx context.Context, userID int64) (*Claim, error) {
	if len(e.tiers) == 0 || e.totalWeight == 0 {
		return nil, ErrNoTiers
	}

	now := e.now()
	today := e.day(now)
	yesterday := today.AddDate(0, 0, -1)

	s := e.state(userID)
	s.mu.Lock()
	if s.lastClaimDate.Equal(today) {
		s.mu.Unlock()
		return nil, fmt.Errorf("user %d: %w", userID, ErrAlreadyClaimed)
	}
	if s.lastClaimDate.Equal(yesterday) {
		s.consecutiveDays++
	} else {
		s.consecutiveDays = 1
	}
	s.lastClaimDate = today
	days := s.consecutiveDays
	s.mu.Unlock()

	tier := e.pickTier()
	multiplier := StreakMultiplier(e.brackets, days)

	claim := &Claim{
		UserID:           userID,
		RewardID:         tier.ID,
		Reward:           tier.Reward,
		ConsecutiveDays:  days,
		StreakMultiplier: multiplier,
	}

	if tier.Reward.Points > 0 {
		credited := scalePoints(tier.Reward.Points, multiplier)
		claim.CreditedPoints = credited
		if _, err := e.ledger.Credit(ctx, userID, credited, "daily:"+tier.ID); err != nil {
			log.Printf("dailyreward: credit failed for user %d tier %s: %v", userID, tier.ID, err)
		}
	}
	if tier.Reward.Multiplier >= 1.0 && tier.Reward.MultiplierWindow > 0 {
		if err := e.ledger.SetMultiplier(ctx, userID, tier.Reward.Multiplier, tier.Reward.MultiplierWindow); err != nil {
			log.Printf("dailyreward: multiplier grant failed for user %d tier %s: %v", userID, tier.ID, err)
		}
	}

	e.bus.Publish(ctx, event.DailyRewardClaimed{
		Meta:            event.Meta{EmittedAt: now, Source: "dailyreward"},
		UserID:          userID,
		RewardID:        tier.ID,
		ConsecutiveDays: days,
	})

	return claim, nil
}

// Streak returns a copy of the user's streak record.
func (e *engine) Streak(ctx context.Context, userID int64) StreakRecord {
	s := e.state(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreakRecord{
		UserID:          userID,
		ConsecutiveDays: s.consecutiveDays,
		LastClaimDate:   s.lastClaimDate,
	}
}

// pickTier draws a tier with probability proportional to its weight.
func (e *engine) pickTier() catalog.DailyTier {
	r := e.rng(e.totalWeight)
	for _, t := range e.tiers {
		if r < t.Weight {
			return t
		}
		r -= t.Weight
	}
	return e.tiers[len(e.tiers)-1]
}

// StreakMultiplier is the deterministic streak bonus: the multiplier of the
// highest bracket whose MinDays the streak has reached, 1.0 below the first.
// Pure function, independent of tier selection.
func StreakMultiplier(brackets []catalog.StreakBracket, consecutiveDays int) float64 {
	multiplier := 1.0
	for _, b := range brackets {
		if consecutiveDays >= b.MinDays {
			multiplier = b.Multiplier
		}
	}
	return multiplier
}

// scalePoints applies the streak multiplier round-half-up.
func scalePoints(points int64, multiplier float64) int64 {
	return int64(float64(points)*multiplier + 0.5)
}
