// internal/achievements/domain.go
package achievements

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownAchievement = errors.New("unknown achievement")

// UserAchievement records a one-time unlock; created at most once per
// (user, achievement) pair.
type UserAchievement struct {
	UserID        int64     `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Snapshot is the read-only aggregate of user state that unlock predicates
// evaluate against. Predicates must not mutate anything.
type Snapshot struct {
	Balance           int64
	LifetimeEarned    int64
	Level             int
	MissionsCompleted int
	ConsecutiveDays   int
}

// SnapshotFunc produces the aggregate view for one user. Wired at
// construction from the ledger, mission engine and daily reward engine reads.
type SnapshotFunc func(ctx context.Context, userID int64) Snapshot
