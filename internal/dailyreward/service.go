// internal/dailyreward/service.go
package dailyreward

import "context"

// Engine tracks consecutive-day streaks and issues one weighted-random
// reward per calendar day per user.
type Engine interface {
	CanClaim(ctx context.Context, userID int64) bool
	Claim(ctx context.Context, userID int64) (*Claim, error)
	Streak(ctx context.Context, userID int64) StreakRecord
}
