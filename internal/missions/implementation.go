// internal/missions/implementation.go
package missions

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"questforge/internal/bus"
	"questforge/internal/catalog"
	"questforge/internal/event"
	"questforge/internal/points"
)

// matchKey indexes mission templates by the event shape they consume, so
// progress evaluation is O(1) per event instead of a scan of all missions.
type matchKey struct {
	kind   event.Kind
	action string
}

type userState struct {
	mu        sync.Mutex
	instances map[string]*Instance
	completed int
}

type engine struct {
	templates map[string]*catalog.Mission
	dispatch  map[matchKey][]*catalog.Mission

	mu    sync.Mutex
	users map[int64]*userState

	ledger points.Ledger
	bus    *bus.Bus
	now    func() time.Time
}

// NewEngine builds the dispatch index from the catalog and subscribes to the
// progress-relevant event kinds on b.
func NewEngine(b *bus.Bus, ledger points.Ledger, cat *catalog.Catalog) Engine {
	if b == nil || ledger == nil || cat == nil {
		panic("missions: missing collaborator")
	}

	e := &engine{
		templates: make(map[string]*catalog.Mission, len(cat.Missions)),
		dispatch:  make(map[matchKey][]*catalog.Mission),
		users:     make(map[int64]*userState),
		ledger:    ledger,
		bus:       b,
		now:       time.Now,
	}
	for i := range cat.Missions {
		m := &cat.Missions[i]
		e.templates[m.ID] = m
		key := matchKey{kind: m.Objective.EventKind, action: m.Objective.Action}
		e.dispatch[key] = append(e.dispatch[key], m)
	}

	for _, kind := range []event.Kind{event.KindUserAction, event.KindNarrativeDecision, event.KindPurchase} {
		b.Subscribe(kind, "missions", e.handleEvent)
	}
	return e
}

func (e *engine) state(userID int64) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.users[userID]
	if !ok {
		s = &userState{instances: make(map[string]*Instance)}
		e.users[userID] = s
	}
	return s
}

// Assign creates an available instance of the mission for the user.
func (e *engine) Assign(ctx context.Context, userID int64, missionID string) (*Instance, error) {
	tpl, ok := e.templates[missionID]
	if !ok {
		return nil, fmt.Errorf("assign %q to user %d: %w", missionID, userID, ErrUnknownMission)
	}
	now := e.now()
	if !e.windowOpen(tpl, now) {
		return nil, fmt.Errorf("assign %q to user %d: mission outside validity window", missionID, userID)
	}

	s := e.state(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[missionID]; exists {
		return nil, fmt.Errorf("assign %q to user %d: %w", missionID, userID, ErrAlreadyAssigned)
	}

	inst := &Instance{
		ID:         uuid.New(),
		UserID:     userID,
		MissionID:  missionID,
		Status:     StatusAvailable,
		AssignedAt: now,
	}
	s.instances[missionID] = inst
	snapshot := *inst
	return &snapshot, nil
}

// AssignAll assigns every currently valid template the user does not hold
// yet, skipping duplicates silently. Used at onboarding.
func (e *engine) AssignAll(ctx context.Context, userID int64) ([]*Instance, error) {
	var assigned []*Instance
	for id := range e.templates {
		inst, err := e.Assign(ctx, userID, id)
		if err != nil {
			continue
		}
		assigned = append(assigned, inst)
	}
	sort.Slice(assigned, func(i, j int) bool { return assigned[i].MissionID < assigned[j].MissionID })
	return assigned, nil
}

// InstancesFor returns copies of the user's instances, lazily expiring stale
// ones first.
func (e *engine) InstancesFor(ctx context.Context, userID int64) []Instance {
	s := e.state(userID)
	now := e.now()

	s.mu.Lock()
	var expired []*Instance
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if !inst.Status.Terminal() && e.expired(inst, now) {
			inst.Status = StatusExpired
			expired = append(expired, inst)
		}
		out = append(out, *inst)
	}
	s.mu.Unlock()

	for _, inst := range expired {
		e.publishExpired(ctx, inst, now)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out
}

// CompletedCount reports how many missions the user has completed; feeds the
// achievement snapshot.
func (e *engine) CompletedCount(ctx context.Context, userID int64) int {
	s := e.state(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// handleEvent advances progress for every template matching the event. A
// terminal instance silently ignores further matches: completion and its
// reward happen exactly once.
func (e *engine) handleEvent(ctx context.Context, ev event.Event) error {
	userID, action, ok := matchFields(ev)
	if !ok {
		return nil
	}

	kind := ev.EventKind()
	candidates := e.dispatch[matchKey{kind: kind, action: action}]
	if action != "" {
		candidates = append(candidates, e.dispatch[matchKey{kind: kind, action: ""}]...)
	}
	if len(candidates) == 0 {
		return nil
	}

	now := e.now()
	s := e.state(userID)

	type outcome struct {
		inst    Instance
		reward  event.RewardSpec
		expired bool
	}
	var outcomes []outcome

	s.mu.Lock()
	for _, tpl := range candidates {
		inst, exists := s.instances[tpl.ID]
		if !exists {
			if !tpl.AutoAssign || !e.windowOpen(tpl, now) {
				continue
			}
			inst = &Instance{
				ID:         uuid.New(),
				UserID:     userID,
				MissionID:  tpl.ID,
				Status:     StatusAvailable,
				AssignedAt: now,
			}
			s.instances[tpl.ID] = inst
		}
		if inst.Status.Terminal() {
			continue
		}
		if e.expired(inst, now) {
			inst.Status = StatusExpired
			outcomes = append(outcomes, outcome{inst: *inst, expired: true})
			continue
		}

		if inst.Status == StatusAvailable {
			inst.Status = StatusInProgress
		}
		inst.Progress++
		if inst.Progress >= tpl.Objective.Quantity {
			inst.Status = StatusCompleted
			inst.CompletedAt = now
			s.completed++
			outcomes = append(outcomes, outcome{inst: *inst, reward: tpl.Reward})
		}
	}
	s.mu.Unlock()

	for _, o := range outcomes {
		if o.expired {
			e.publishExpired(ctx, &o.inst, now)
			continue
		}
		e.issueReward(ctx, &o.inst, o.reward, now)
	}
	return nil
}

// issueReward credits the completion reward and emits MissionCompleted. The
// completed transition was already recorded under the user lock, so a replay
// of the same event can never reach here twice for one instance.
func (e *engine) issueReward(ctx context.Context, inst *Instance, reward event.RewardSpec, now time.Time) {
	if reward.Points > 0 {
		if _, err := e.ledger.Credit(ctx, inst.UserID, reward.Points, "mission:"+inst.MissionID); err != nil {
			log.Printf("missions: reward credit failed for user %d mission %s: %v", inst.UserID, inst.MissionID, err)
		}
	}
	if reward.Multiplier >= 1.0 && reward.MultiplierWindow > 0 {
		if err := e.ledger.SetMultiplier(ctx, inst.UserID, reward.Multiplier, reward.MultiplierWindow); err != nil {
			log.Printf("missions: reward multiplier failed for user %d mission %s: %v", inst.UserID, inst.MissionID, err)
		}
	}

	e.bus.Publish(ctx, event.MissionCompleted{
		Meta:      event.Meta{EmittedAt: now, Source: "missions"},
		UserID:    inst.UserID,
		MissionID: inst.MissionID,
		Reward:    reward,
	})
}

func (e *engine) publishExpired(ctx context.Context, inst *Instance, now time.Time) {
	e.bus.Publish(ctx, event.MissionExpired{
		Meta:      event.Meta{EmittedAt: now, Source: "missions"},
		UserID:    inst.UserID,
		MissionID: inst.MissionID,
	})
}

// windowOpen checks the template validity window.
func (e *engine) windowOpen(tpl *catalog.Mission, now time.Time) bool {
	if !tpl.ValidFrom.IsZero() && now.Before(tpl.ValidFrom) {
		return false
	}
	if !tpl.ValidUntil.IsZero() && now.After(tpl.ValidUntil) {
		return false
	}
	return true
}

// expired applies the lazy expiry check: template window plus the per-type
// instance lifetime. No background scheduler; staleness is detected on the
// next touch.
func (e *engine) expired(inst *Instance, now time.Time) bool {
	tpl, ok := e.templates[inst.MissionID]
	if !ok {
		// Catalog drift: instance references a template this engine never
		// loaded. Configuration bug, not a user error.
		log.Printf("missions: instance %s references unknown mission %q", inst.ID, inst.MissionID)
		return true
	}
	if !tpl.ValidUntil.IsZero() && now.After(tpl.ValidUntil) {
		return true
	}
	if ttl := instanceTTL(tpl.Type); ttl > 0 && now.After(inst.AssignedAt.Add(ttl)) {
		return true
	}
	return false
}

// instanceTTL is the instance lifetime implied by the mission cadence.
func instanceTTL(t catalog.MissionType) time.Duration {
	switch t {
	case catalog.MissionDaily:
		return 24 * time.Hour
	case catalog.MissionWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// matchFields extracts the user and action discriminator from the closed
// event set.
func matchFields(ev event.Event) (userID int64, action string, ok bool) {
	switch p := ev.(type) {
	case event.UserAction:
		return p.UserID, p.ActionType, true
	case event.NarrativeDecision:
		return p.UserID, "", true
	case event.Purchase:
		return p.UserID, "", true
	default:
		return 0, "", false
	}
}
