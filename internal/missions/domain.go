// internal/missions/domain.go
package missions

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownMission  = errors.New("unknown mission")
	ErrAlreadyAssigned = errors.New("mission already assigned")
)

// Status is the mission instance state machine:
// available -> in_progress -> {completed | failed | expired}.
// Terminal states have no outgoing transitions.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Instance is one user's progress toward a mission template. Mutated only by
// the mission engine; progress never decrements.
type Instance struct {
	ID          uuid.UUID `json:"id"`
	UserID      int64     `json:"user_id"`
	MissionID   string    `json:"mission_id"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	AssignedAt  time.Time `json:"assigned_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
