// internal/points/domain.go
package points

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount: must be non-negative")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidMultiplier = errors.New("invalid multiplier: factor must be >= 1.0")
)

// Account is one user's point balance and multiplier state. Balance is never
// negative; an expired multiplier reads as 1.0.
type Account struct {
	UserID              int64     `json:"user_id"`
	Balance             int64     `json:"balance"`
	LifetimeEarned      int64     `json:"lifetime_earned"`
	Multiplier          float64   `json:"multiplier"`
	MultiplierExpiresAt time.Time `json:"multiplier_expires_at,omitempty"`
	Level               int       `json:"level"`
}

// Transaction is one ledger entry. Delta is positive for credits, negative
// for debits; Balance is the post-transaction balance.
type Transaction struct {
	ID      uuid.UUID `json:"id"`
	UserID  int64     `json:"user_id"`
	Delta   int64     `json:"delta"`
	Balance int64     `json:"balance"`
	Source  string    `json:"source"`
	At      time.Time `json:"at"`
}
