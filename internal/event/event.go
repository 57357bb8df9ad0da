// internal/event/event.go
package event

import "time"

// Kind identifies an event type on the bus. Subscriptions and dispatch are
// keyed by the exact kind, so the set below is closed: adding a new event
// means adding a constant here and a payload struct in this package.
type Kind string

const (
	// KindUserAction signals a user interaction in the messaging app
	// (reaction, trivia answer, login). Producer: presentation layer.
	// Consumers: accrual subscriber, MissionEngine.
	KindUserAction Kind = "user.action"

	// KindNarrativeDecision signals a completed narrative choice.
	// Producer: narrative engine. Consumer: MissionEngine.
	KindNarrativeDecision Kind = "narrative.decision"

	// KindPurchase signals an item purchase paid in points.
	// Producer: presentation layer. Consumers: accrual subscriber, MissionEngine.
	KindPurchase Kind = "purchase"

	// KindPointsCredited signals a completed ledger credit.
	// Producer: PointsLedger. Consumer: AchievementEvaluator.
	KindPointsCredited Kind = "points.credited"

	// KindPointsDebited signals a completed ledger debit.
	// Producer: PointsLedger.
	KindPointsDebited Kind = "points.debited"

	// KindLevelUp signals a lifetime-earned threshold crossing.
	// Producer: PointsLedger. Consumer: AchievementEvaluator.
	KindLevelUp Kind = "points.level_up"

	// KindMultiplierActivated signals a granted point multiplier.
	// Producer: PointsLedger.
	KindMultiplierActivated Kind = "points.multiplier_activated"

	// KindMissionCompleted signals a mission instance reaching completed.
	// Producer: MissionEngine. Consumer: AchievementEvaluator.
	KindMissionCompleted Kind = "mission.completed"

	// KindMissionExpired signals a lazy expiry of a mission instance.
	// Producer: MissionEngine.
	KindMissionExpired Kind = "mission.expired"

	// KindAchievementUnlocked signals a first-time achievement unlock.
	// Producer: AchievementEvaluator.
	KindAchievementUnlocked Kind = "achievement.unlocked"

	// KindDailyRewardClaimed signals a successful daily claim.
	// Producer: DailyRewardEngine. Consumer: AchievementEvaluator.
	KindDailyRewardClaimed Kind = "daily.claimed"

	// KindCatalogReloaded signals that the engine swapped in a new catalog.
	// Producer: admin/config collaborator via the ingestion surface.
	KindCatalogReloaded Kind = "catalog.reloaded"
)

// Event is the closed union of bus payloads. Handlers type-switch on the
// concrete payload; Meta carries the transport envelope fields.
type Event interface {
	EventKind() Kind
	EventMeta() Meta
}

// Meta is the envelope shared by every event.
type Meta struct {
	EmittedAt time.Time `json:"emitted_at"`
	Source    string    `json:"source"`
}

func (m Meta) EventMeta() Meta { return m }

// RewardSpec is the opaque reward payload carried on completion events. A
// reward may be point-denominated, grant a temporary multiplier, or reference
// a narrative fragment resolved by the issuing collaborator. Zero fields mean
// "nothing of that kind".
type RewardSpec struct {
	Points            int64         `json:"points,omitempty"`
	Multiplier        float64       `json:"multiplier,omitempty"`
	MultiplierWindow  time.Duration `json:"multiplier_window,omitempty"`
	NarrativeFragment string        `json:"narrative_fragment,omitempty"`
}

// IsZero reports whether the spec grants nothing.
func (r RewardSpec) IsZero() bool {
	return r.Points == 0 && r.Multiplier == 0 && r.NarrativeFragment == ""
}

// UserAction is a generic user interaction: reacting to content, answering
// trivia, logging in. ActionType is the catalog key for accrual and mission
// matching.
type UserAction struct {
	Meta
	UserID     int64             `json:"user_id"`
	ActionType string            `json:"action_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (UserAction) EventKind() Kind { return KindUserAction }

// NarrativeDecision records a user's choice at a story fragment.
type NarrativeDecision struct {
	Meta
	UserID     int64  `json:"user_id"`
	FragmentID string `json:"fragment_id"`
	ChoiceID   string `json:"choice_id"`
}

func (NarrativeDecision) EventKind() Kind { return KindNarrativeDecision }

// Purchase records an item bought with points.
type Purchase struct {
	Meta
	UserID int64  `json:"user_id"`
	ItemID string `json:"item_id"`
	Cost   int64  `json:"cost"`
}

func (Purchase) EventKind() Kind { return KindPurchase }

// PointsCredited reports the applied (post-multiplier) credit amount.
type PointsCredited struct {
	Meta
	UserID       int64  `json:"user_id"`
	Amount       int64  `json:"amount"`
	NewBalance   int64  `json:"new_balance"`
	CreditSource string `json:"credit_source"`
}

func (PointsCredited) EventKind() Kind { return KindPointsCredited }

// PointsDebited reports a completed debit.
type PointsDebited struct {
	Meta
	UserID     int64  `json:"user_id"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
	Reason     string `json:"reason"`
}

func (PointsDebited) EventKind() Kind { return KindPointsDebited }

// LevelUp reports a level threshold crossing.
type LevelUp struct {
	Meta
	UserID   int64 `json:"user_id"`
	OldLevel int   `json:"old_level"`
	NewLevel int   `json:"new_level"`
}

func (LevelUp) EventKind() Kind { return KindLevelUp }

// MultiplierActivated reports a granted credit multiplier.
type MultiplierActivated struct {
	Meta
	UserID    int64     `json:"user_id"`
	Factor    float64   `json:"factor"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (MultiplierActivated) EventKind() Kind { return KindMultiplierActivated }

// MissionCompleted is emitted exactly once per completed mission instance.
type MissionCompleted struct {
	Meta
	UserID    int64      `json:"user_id"`
	MissionID string     `json:"mission_id"`
	Reward    RewardSpec `json:"reward"`
}

func (MissionCompleted) EventKind() Kind { return KindMissionCompleted }

// MissionExpired is emitted when a lazy expiry check retires an instance.
type MissionExpired struct {
	Meta
	UserID    int64  `json:"user_id"`
	MissionID string `json:"mission_id"`
}

func (MissionExpired) EventKind() Kind { return KindMissionExpired }

// AchievementUnlocked is emitted at most once per (user, achievement) pair.
type AchievementUnlocked struct {
	Meta
	UserID        int64  `json:"user_id"`
	AchievementID string `json:"achievement_id"`
}

func (AchievementUnlocked) EventKind() Kind { return KindAchievementUnlocked }

// DailyRewardClaimed reports a successful daily claim and the streak length
// that produced it.
type DailyRewardClaimed struct {
	Meta
	UserID          int64  `json:"user_id"`
	RewardID        string `json:"reward_id"`
	ConsecutiveDays int    `json:"consecutive_days"`
}

func (DailyRewardClaimed) EventKind() Kind { return KindDailyRewardClaimed }

// CatalogReloaded announces a catalog swap pushed by the admin service.
type CatalogReloaded struct {
	Meta
	Version string `json:"version"`
}

func (CatalogReloaded) EventKind() Kind { return KindCatalogReloaded }
