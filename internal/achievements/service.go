// internal/achievements/service.go
package achievements

import "context"

// Evaluator subscribes to progress-relevant events, evaluates unlock
// predicates against read-only snapshots and grants each achievement's reward
// exactly once per user.
type Evaluator interface {
	UnlockedFor(ctx context.Context, userID int64) []UserAchievement
	Unlocked(ctx context.Context, userID int64, achievementID string) (bool, error)
}
