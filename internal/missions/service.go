// internal/missions/service.go
package missions

import "context"

// Engine tracks per-user mission instances, evaluates progress from bus
// events, and emits completion events. Instances reach terminal states only
// through the engine.
type Engine interface {
	Assign(ctx context.Context, userID int64, missionID string) (*Instance, error)
	AssignAll(ctx context.Context, userID int64) ([]*Instance, error)
	InstancesFor(ctx context.Context, userID int64) []Instance
	CompletedCount(ctx context.Context, userID int64) int
}
