// internal/points/service.go
package points

import (
	"context"
	"time"
)

// Ledger owns per-user balances and multiplier state. All balance mutations
// route through Credit and Debit; every engine that grants rewards shares one
// Ledger instance.
type Ledger interface {
	Credit(ctx context.Context, userID, amount int64, source string) (int64, error)
	Debit(ctx context.Context, userID, amount int64, reason string) (int64, error)
	SetMultiplier(ctx context.Context, userID int64, factor float64, duration time.Duration) error
	Account(ctx context.Context, userID int64) Account
	History(ctx context.Context, userID int64) []Transaction
	LevelFor(lifetimeEarned int64) int
}
