package driven

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// ScheduleStore persists recurring schedule state so that every scheduler
// instance, and a restarted one, agrees on when a schedule last ran.
type ScheduleStore interface {
	// ListSchedules returns all persisted schedules
	ListSchedules(ctx context.Context) ([]*domain.ScheduledTask, error)

	// SaveSchedule creates or updates a schedule
	SaveSchedule(ctx context.Context, schedule *domain.ScheduledTask) error
}
