// internal/dailyreward/domain.go
package dailyreward

import (
	"errors"
	"time"

	"questforge/internal/event"
)

var (
	ErrAlreadyClaimed = errors.New("daily reward already claimed today")
	ErrNoTiers        = errors.New("no daily reward tiers configured")
)

// StreakRecord tracks consecutive calendar days of claims in the engine's
// configured timezone. Missing a day resets consecutive_days to 1 on the next
// claim, never any lifetime stats.
type StreakRecord struct {
	UserID          int64     `json:"user_id"`
	ConsecutiveDays int       `json:"consecutive_days"`
	LastClaimDate   time.Time `json:"last_claim_date"`
}

// Claim is the result of a successful daily claim. CreditedPoints is the
// streak-multiplied point amount actually sent to the ledger; zero for purely
// narrative rewards.
type Claim struct {
	UserID           int64            `json:"user_id"`
	RewardID         string           `json:"reward_id"`
	Reward           event.RewardSpec `json:"reward"`
	ConsecutiveDays  int              `json:"consecutive_days"`
	StreakMultiplier float64          `json:"streak_multiplier"`
	CreditedPoints   int64            `json:"credited_points"`
}
