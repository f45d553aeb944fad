package rules

import (
	"context"
	"time"

	"lifehub/internal/models"
)

// Store is the persistence boundary the engine talks to. internal/db
// implements it against Postgres; tests use an in-memory fake.
type Store interface {
	// RulesForTrigger returns the user's enabled rules for one trigger type,
	// ordered by creation time so evaluation order is deterministic.
	RulesForTrigger(ctx context.Context, userID, triggerType string) ([]models.Rule, error)

	// InsertExecution appends one immutable audit record.
	InsertExecution(ctx context.Context, exec *models.RuleExecution) error

	// MarkRuleFired bumps the rule's firing counters in one atomic write:
	// last_fired_at, lifetime count, and the daily count with its lazy
	// calendar-day reset.
	MarkRuleFired(ctx context.Context, ruleID string, firedAt time.Time, day string) error

	InsertTask(ctx context.Context, task *models.Task) error
	UpdateTaskStatus(ctx context.Context, userID, taskID, status string) error
	GetGoal(ctx context.Context, userID, goalID string) (*models.Goal, error)
	UpdateGoalValue(ctx context.Context, userID, goalID string, value float64) error
	PatchUserContext(ctx context.Context, userID string, room, activity *string) error
}
