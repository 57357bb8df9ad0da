// internal/points/implementation_test.go
package points

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"questforge/internal/bus"
	"questforge/internal/event"
)

func newTestLedger(t *testing.T) (*ledger, *bus.Bus, *[]event.Event) {
	t.Helper()

	b := bus.New(bus.WithDeadLetter(func(event.Event) {}))
	var published []event.Event
	for _, kind := range []event.Kind{
		event.KindPointsCredited, event.KindPointsDebited,
		event.KindLevelUp, event.KindMultiplierActivated,
	} {
		b.Subscribe(kind, "recorder", func(ctx context.Context, ev event.Event) error {
			published = append(published, ev)
			return nil
		})
	}

	l := NewLedger(b, []int64{100, 300, 600}, nil).(*ledger)
	return l, b, &published
}

func TestCreditAndDebit(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	balance, err := l.Credit(ctx, 7, 50, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	balance, err = l.Debit(ctx, 7, 20, "spend")
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	acct := l.Account(ctx, 7)
	assert.Equal(t, int64(30), acct.Balance)
	assert.Equal(t, int64(50), acct.LifetimeEarned, "debits never reduce lifetime earnings")
}

func TestCreditNegativeAmount(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.Credit(context.Background(), 7, -1, "test")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDebitInsufficientFunds(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Credit(ctx, 7, 10, "test")
	require.NoError(t, err)

	balance, err := l.Debit(ctx, 7, 11, "spend")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(10), balance, "failed debit leaves the balance untouched")
}

func TestMultiplierAppliedOncePerCreditRoundHalfUp(t *testing.T) {
	l, _, published := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SetMultiplier(ctx, 7, 1.5, time.Hour))

	// 5 * 1.5 = 7.5 rounds half-up to 8.
	balance, err := l.Credit(ctx, 7, 5, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(8), balance)

	// A second credit multiplies the raw amount again, never the balance:
	// no compounding.
	balance, err = l.Credit(ctx, 7, 10, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(23), balance)

	var credited []event.PointsCredited
	for _, ev := range *published {
		if pc, ok := ev.(event.PointsCredited); ok {
			credited = append(credited, pc)
		}
	}
	require.Len(t, credited, 2)
	assert.Equal(t, int64(8), credited[0].Amount, "event reports the applied amount")
	assert.Equal(t, int64(15), credited[1].Amount)
}

func TestMultiplierOverwritesNotStacks(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SetMultiplier(ctx, 7, 2.0, time.Hour))
	require.NoError(t, l.SetMultiplier(ctx, 7, 1.5, time.Hour))

	balance, err := l.Credit(ctx, 7, 10, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)
}

func TestExpiredMultiplierLazilyReverts(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	require.NoError(t, l.SetMultiplier(ctx, 7, 2.0, time.Hour))
	current = current.Add(2 * time.Hour)

	assert.Equal(t, 1.0, l.Account(ctx, 7).Multiplier)

	balance, err := l.Credit(ctx, 7, 10, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestInvalidMultiplierRejected(t *testing.T) {
	l, _, _ := newTestLedger(t)
	err := l.SetMultiplier(context.Background(), 7, 0.5, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidMultiplier)
}

func TestLevelUpEmittedOnThresholdCrossing(t *testing.T) {
	l, _, published := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Credit(ctx, 7, 99, "test")
	require.NoError(t, err)
	_, err = l.Credit(ctx, 7, 1, "test")
	require.NoError(t, err)

	var levelUps []event.LevelUp
	for _, ev := range *published {
		if lu, ok := ev.(event.LevelUp); ok {
			levelUps = append(levelUps, lu)
		}
	}
	require.Len(t, levelUps, 1)
	assert.Equal(t, 1, levelUps[0].OldLevel)
	assert.Equal(t, 2, levelUps[0].NewLevel)
}

func TestHistoryRecordsDeltas(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Credit(ctx, 7, 40, "earn")
	require.NoError(t, err)
	_, err = l.Debit(ctx, 7, 15, "spend")
	require.NoError(t, err)

	history := l.History(ctx, 7)
	require.Len(t, history, 2)
	assert.Equal(t, int64(40), history[0].Delta)
	assert.Equal(t, int64(-15), history[1].Delta)
	assert.Equal(t, int64(25), history[1].Balance)
}

// Balance conservation: for any sequence of credits and debits the balance
// equals the sum of applied deltas and never goes negative.
func TestBalanceConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := bus.New(bus.WithDeadLetter(func(event.Event) {}))
		b.Subscribe(event.KindPointsCredited, "noop", func(context.Context, event.Event) error { return nil })
		b.Subscribe(event.KindPointsDebited, "noop", func(context.Context, event.Event) error { return nil })
		l := NewLedger(b, nil, nil)
		ctx := context.Background()

		var expected int64
		ops := rapid.IntRange(1, 50).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			amount := rapid.Int64Range(0, 1000).Draw(t, "amount")
			if rapid.Bool().Draw(t, "credit") {
				balance, err := l.Credit(ctx, 1, amount, "prop")
				if err != nil {
					t.Fatalf("credit: %v", err)
				}
				expected += amount
				if balance != expected {
					t.Fatalf("balance %d, expected %d", balance, expected)
				}
			} else {
				balance, err := l.Debit(ctx, 1, amount, "prop")
				if err == nil {
					expected -= amount
				}
				if balance != expected {
					t.Fatalf("balance %d, expected %d", balance, expected)
				}
				if balance < 0 {
					t.Fatalf("balance went negative: %d", balance)
				}
			}
		}
	})
}
