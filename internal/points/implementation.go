// internal/points/implementation.go
package points

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"questforge/internal/bus"
	"questforge/internal/event"
)

// historyLimit bounds the in-memory per-user transaction ring.
const historyLimit = 100

// Journal is an optional durable sink for ledger transactions. Append errors
// are logged, not propagated: the in-memory ledger remains the source of
// truth for a running engine.
type Journal interface {
	Append(ctx context.Context, tx Transaction) error
}

type account struct {
	mu sync.Mutex

	balance             int64
	lifetimeEarned      int64
	multiplier          float64
	multiplierExpiresAt time.Time

	history []Transaction
}

// ledger implements the Ledger interface over in-memory accounts with
// per-user locking. Cross-user operations never contend.
type ledger struct {
	mu       sync.Mutex
	accounts map[int64]*account

	levels  levelTable
	bus     *bus.Bus
	journal Journal
	now     func() time.Time
}

// NewLedger creates a ledger publishing PointsCredited, PointsDebited,
// LevelUp and MultiplierActivated to b. journal may be nil.
func NewLedger(b *bus.Bus, levelThresholds []int64, journal Journal) Ledger {
	if b == nil {
		panic("points: nil bus")
	}
	return &ledger{
		accounts: make(map[int64]*account),
		levels:   newLevelTable(levelThresholds),
		bus:      b,
		journal:  journal,
		now:      time.Now,
	}
}

func (l *ledger) acct(userID int64) *account {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[userID]
	if !ok {
		a = &account{multiplier: 1.0}
		l.accounts[userID] = a
	}
	return a
}

// effectiveMultiplier lazily reverts an expired multiplier. Caller holds a.mu.
func (a *account) effectiveMultiplier(now time.Time) float64 {
	if a.multiplier > 1.0 && !now.Before(a.multiplierExpiresAt) {
		a.multiplier = 1.0
		a.multiplierExpiresAt = time.Time{}
	}
	return a.multiplier
}

// roundHalfUp applies the multiplier once, never compounded.
func roundHalfUp(amount int64, factor float64) int64 {
	return int64(math.Floor(float64(amount)*factor + 0.5))
}

// Credit applies the active multiplier to amount, updates balance and
// lifetime earnings, and emits PointsCredited plus LevelUp when a threshold
// is crossed, all in the caller's publish cycle.
func (l *ledger) Credit(ctx context.Context, userID, amount int64, source string) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit %d for user %d: %w", amount, userID, ErrInvalidAmount)
	}

	a := l.acct(userID)
	a.mu.Lock()
	now := l.now()
	applied := roundHalfUp(amount, a.effectiveMultiplier(now))
	oldLevel := l.levels.levelFor(a.lifetimeEarned)
	a.balance += applied
	a.lifetimeEarned += applied
	newLevel := l.levels.levelFor(a.lifetimeEarned)
	newBalance := a.balance
	tx := l.record(a, userID, applied, source, now)
	a.mu.Unlock()

	l.appendJournal(ctx, tx)

	l.bus.Publish(ctx, event.PointsCredited{
		Meta:         event.Meta{EmittedAt: now, Source: "points"},
		UserID:       userID,
		Amount:       applied,
		NewBalance:   newBalance,
		CreditSource: source,
	})
	if newLevel > oldLevel {
		l.bus.Publish(ctx, event.LevelUp{
			Meta:     event.Meta{EmittedAt: now, Source: "points"},
			UserID:   userID,
			OldLevel: oldLevel,
			NewLevel: newLevel,
		})
	}

	return newBalance, nil
}

// Debit withdraws amount; the balance never goes negative.
func (l *ledger) Debit(ctx context.Context, userID, amount int64, reason string) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("debit %d for user %d: %w", amount, userID, ErrInvalidAmount)
	}

	a := l.acct(userID)
	a.mu.Lock()
	if a.balance-amount < 0 {
		balance := a.balance
		a.mu.Unlock()
		return balance, fmt.Errorf("debit %d for user %d (balance %d): %w", amount, userID, balance, ErrInsufficientFunds)
	}
	now := l.now()
	a.balance -= amount
	newBalance := a.balance
	tx := l.record(a, userID, -amount, reason, now)
	a.mu.Unlock()

	l.appendJournal(ctx, tx)

	l.bus.Publish(ctx, event.PointsDebited{
		Meta:       event.Meta{EmittedAt: now, Source: "points"},
		UserID:     userID,
		Amount:     amount,
		NewBalance: newBalance,
		Reason:     reason,
	})

	return newBalance, nil
}

// SetMultiplier overwrites any existing multiplier; factors never stack.
func (l *ledger) SetMultiplier(ctx context.Context, userID int64, factor float64, duration time.Duration) error {
	if factor < 1.0 {
		return fmt.Errorf("multiplier %.2f for user %d: %w", factor, userID, ErrInvalidMultiplier)
	}

	a := l.acct(userID)
	a.mu.Lock()
	now := l.now()
	expiresAt := now.Add(duration)
	a.multiplier = factor
	a.multiplierExpiresAt = expiresAt
	a.mu.Unlock()

	l.bus.Publish(ctx, event.MultiplierActivated{
		Meta:      event.Meta{EmittedAt: now, Source: "points"},
		UserID:    userID,
		Factor:    factor,
		ExpiresAt: expiresAt,
	})
	return nil
}

// Account returns a read snapshot, reverting an expired multiplier first.
func (l *ledger) Account(ctx context.Context, userID int64) Account {
	a := l.acct(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return Account{
		UserID:              userID,
		Balance:             a.balance,
		LifetimeEarned:      a.lifetimeEarned,
		Multiplier:          a.effectiveMultiplier(l.now()),
		MultiplierExpiresAt: a.multiplierExpiresAt,
		Level:               l.levels.levelFor(a.lifetimeEarned),
	}
}

// History returns the most recent transactions, newest last.
func (l *ledger) History(ctx context.Context, userID int64) []Transaction {
	a := l.acct(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Transaction(nil), a.history...)
}

// LevelFor exposes the pure threshold lookup.
func (l *ledger) LevelFor(lifetimeEarned int64) int {
	return l.levels.levelFor(lifetimeEarned)
}

// record appends to the bounded in-memory history. Caller holds a.mu.
func (l *ledger) record(a *account, userID, delta int64, source string, now time.Time) Transaction {
	tx := Transaction{
		ID:      uuid.New(),
		UserID:  userID,
		Delta:   delta,
		Balance: a.balance,
		Source:  source,
		At:      now,
	}
	a.history = append(a.history, tx)
	if len(a.history) > historyLimit {
		a.history = a.history[len(a.history)-historyLimit:]
	}
	return tx
}

func (l *ledger) appendJournal(ctx context.Context, tx Transaction) {
	if l.journal == nil {
		return
	}
	if err := l.journal.Append(ctx, tx); err != nil {
		log.Printf("points: journal append failed for user %d: %v", tx.UserID, err)
	}
}
