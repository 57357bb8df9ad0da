// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"questforge/internal/achievements"
	"questforge/internal/bus"
	"questforge/internal/catalog"
	"questforge/internal/dailyreward"
	"questforge/internal/event"
	"questforge/internal/missions"
	"questforge/internal/points"
)

// Options carries the optional collaborators. Every required collaborator is
// constructed here; a missing or invalid catalog fails construction, not the
// first call.
type Options struct {
	// Journal persists ledger transactions; nil keeps the ledger in-memory only.
	Journal points.Journal
	// Rand overrides daily tier selection randomness for tests.
	Rand dailyreward.RandFunc
}

// Engine owns the bus and the four reward subsystems, wired with explicit
// dependency injection. It is a library facade: the boundary is in-process
// calls plus the event contract in internal/event.
type Engine struct {
	catalog *catalog.Catalog

	bus          *bus.Bus
	ledger       points.Ledger
	missions     missions.Engine
	achievements achievements.Evaluator
	daily        dailyreward.Engine
}

// New validates the catalog and assembles the engine. The accrual subscriber
// translates consumed collaborator events into ledger operations; mission and
// achievement subscriptions are registered by their own constructors.
func New(cat *catalog.Catalog, opts Options) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("engine: nil catalog")
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	b := bus.New()
	ledger := points.NewLedger(b, cat.LevelThresholds, opts.Journal)
	missionEngine := missions.NewEngine(b, ledger, cat)
	daily := dailyreward.NewEngine(b, ledger, cat, opts.Rand)

	e := &Engine{
		catalog:  cat,
		bus:      b,
		ledger:   ledger,
		missions: missionEngine,
		daily:    daily,
	}

	// Read-only aggregate for unlock predicates.
	snapshot := func(ctx context.Context, userID int64) achievements.Snapshot {
		acct := ledger.Account(ctx, userID)
		return achievements.Snapshot{
			Balance:           acct.Balance,
			LifetimeEarned:    acct.LifetimeEarned,
			Level:             acct.Level,
			MissionsCompleted: missionEngine.CompletedCount(ctx, userID),
			ConsecutiveDays:   daily.Streak(ctx, userID).ConsecutiveDays,
		}
	}
	e.achievements = achievements.NewEvaluator(b, ledger, snapshot, cat)

	// Accrual: base action points and purchase debits. Registered last so
	// mission progress for an event is evaluated before its secondary
	// PointsCredited lands, keeping cycles deterministic.
	b.Subscribe(event.KindUserAction, "accrual", e.handleUserAction)
	b.Subscribe(event.KindPurchase, "accrual", e.handlePurchase)
	b.Subscribe(event.KindNarrativeDecision, "accrual", e.handleNarrativeDecision)

	b.Subscribe(event.KindCatalogReloaded, "engine", func(ctx context.Context, ev event.Event) error {
		if reloaded, ok := ev.(event.CatalogReloaded); ok {
			log.Printf("engine: catalog %s announced by %s", reloaded.Version, reloaded.Source)
		}
		return nil
	})

	return e, nil
}

// Publish injects a collaborator event into the engine's bus.
func (e *Engine) Publish(ctx context.Context, ev event.Event) {
	e.bus.Publish(ctx, ev)
}

// Bus exposes the dispatcher for additional collaborator subscriptions,
// setup-time only.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Ledger exposes the points ledger.
func (e *Engine) Ledger() points.Ledger { return e.ledger }

// Missions exposes the mission engine.
func (e *Engine) Missions() missions.Engine { return e.missions }

// Achievements exposes the achievement evaluator.
func (e *Engine) Achievements() achievements.Evaluator { return e.achievements }

// Daily exposes the daily reward engine.
func (e *Engine) Daily() dailyreward.Engine { return e.daily }

func (e *Engine) handleUserAction(ctx context.Context, ev event.Event) error {
	action, ok := ev.(event.UserAction)
	if !ok {
		return nil
	}

	amount, known := e.catalog.ActionPoints[action.ActionType]
	if !known {
		// Unknown action types earn nothing but still drive missions.
		return nil
	}
	if amount == 0 {
		return nil
	}

	_, err := e.ledger.Credit(ctx, action.UserID, amount, "action:"+action.ActionType)
	return err
}

func (e *Engine) handlePurchase(ctx context.Context, ev event.Event) error {
	purchase, ok := ev.(event.Purchase)
	if !ok {
		return nil
	}
	if purchase.Cost <= 0 {
		return nil
	}

	if _, err := e.ledger.Debit(ctx, purchase.UserID, purchase.Cost, "purchase:"+purchase.ItemID); err != nil {
		if errors.Is(err, points.ErrInsufficientFunds) {
			// Ordinary negative result: the purchasing collaborator decides
			// what to do, the engine just declines the debit.
			log.Printf("engine: purchase declined for user %d item %s: %v", purchase.UserID, purchase.ItemID, err)
			return nil
		}
		return err
	}
	return nil
}

func (e *Engine) handleNarrativeDecision(ctx context.Context, ev event.Event) error {
	decision, ok := ev.(event.NarrativeDecision)
	if !ok {
		return nil
	}

	amount, known := e.catalog.ActionPoints["narrative_decision"]
	if !known || amount == 0 {
		return nil
	}
	_, err := e.ledger.Credit(ctx, decision.UserID, amount, "narrative:"+decision.FragmentID)
	return err
}

// Stats is the aggregated view consumed by the admin collaborator.
type Stats struct {
	CatalogVersion string    `json:"catalog_version"`
	Published      int64     `json:"events_published"`
	HandlerErrors  int64     `json:"handler_errors"`
	DeadLetters    int64     `json:"dead_letters"`
	CollectedAt    time.Time `json:"collected_at"`
}

// Stats returns engine-wide counters.
func (e *Engine) Stats() Stats {
	return Stats{
		CatalogVersion: e.catalog.Version,
		Published:      e.bus.Published(),
		HandlerErrors:  e.bus.Failures(),
		DeadLetters:    e.bus.DeadLetters(),
		CollectedAt:    time.Now(),
	}
}
