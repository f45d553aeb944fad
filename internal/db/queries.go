package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"lifehub/internal/models"
)

const ruleColumns = `id, owner_id, name, description, category, enabled, severity,
	trigger_type, trigger_config, conditions, actions,
	cooldown_minutes, max_fires_per_day, excluded_rooms, excluded_times,
	explanation_template, escalation_enabled, escalation_after_minutes, escalation_action,
	last_fired_at, times_fired, times_fired_today, last_reset_date, created_at`

func scanRule(row pgx.Row) (*models.Rule, error) {
	var r models.Rule
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Description, &r.Category, &r.Enabled, &r.Severity,
		&r.TriggerType, &r.TriggerConfig, &r.Conditions, &r.Actions,
		&r.CooldownMinutes, &r.MaxFiresPerDay, &r.ExcludedRooms, &r.ExcludedTimes,
		&r.ExplanationTemplate, &r.EscalationEnabled, &r.EscalationAfterMinutes, &r.EscalationAction,
		&r.LastFiredAt, &r.TimesFired, &r.TimesFiredToday, &r.LastResetDate, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRules(rows pgx.Rows) ([]models.Rule, error) {
	defer rows.Close()
	var rules []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

// RulesForTrigger fetches the user's enabled rules for one trigger type.
// Creation order keeps cross-rule evaluation deterministic.
func (d *DB) RulesForTrigger(ctx context.Context, userID, triggerType string) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE owner_id = $1 AND trigger_type = $2 AND enabled ORDER BY created_at, id",
		userID, triggerType)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// ListRules fetches all rules owned by the user.
func (d *DB) ListRules(ctx context.Context, userID string) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE owner_id = $1 ORDER BY created_at, id", userID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// GetRule fetches one rule scoped to its owner.
func (d *DB) GetRule(ctx context.Context, userID, id string) (*models.Rule, error) {
	return scanRule(d.pool.QueryRow(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE id = $1 AND owner_id = $2", id, userID))
}

// InsertRule creates a rule row.
func (d *DB) InsertRule(ctx context.Context, r *models.Rule) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO rules (id, owner_id, name, description, category, enabled, severity,
			trigger_type, trigger_config, conditions, actions,
			cooldown_minutes, max_fires_per_day, excluded_rooms, excluded_times,
			explanation_template, escalation_enabled, escalation_after_minutes, escalation_action, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		r.ID, r.OwnerID, r.Name, r.Description, r.Category, r.Enabled, r.Severity,
		r.TriggerType, r.TriggerConfig, r.Conditions, r.Actions,
		r.CooldownMinutes, r.MaxFiresPerDay, r.ExcludedRooms, r.ExcludedTimes,
		r.ExplanationTemplate, r.EscalationEnabled, r.EscalationAfterMinutes, r.EscalationAction, r.CreatedAt)
	return err
}

// UpdateRule overwrites the editable fields, scoped to the owner. Firing
// counters are engine-owned and untouched here.
func (d *DB) UpdateRule(ctx context.Context, r *models.Rule) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE rules SET name=$3, description=$4, category=$5, enabled=$6, severity=$7,
			trigger_type=$8, trigger_config=$9, conditions=$10, actions=$11,
			cooldown_minutes=$12, max_fires_per_day=$13, excluded_rooms=$14, excluded_times=$15,
			explanation_template=$16, escalation_enabled=$17, escalation_after_minutes=$18, escalation_action=$19
		 WHERE id=$1 AND owner_id=$2`,
		r.ID, r.OwnerID, r.Name, r.Description, r.Category, r.Enabled, r.Severity,
		r.TriggerType, r.TriggerConfig, r.Conditions, r.Actions,
		r.CooldownMinutes, r.MaxFiresPerDay, r.ExcludedRooms, r.ExcludedTimes,
		r.ExplanationTemplate, r.EscalationEnabled, r.EscalationAfterMinutes, r.EscalationAction)
	return err
}

// DeleteRule removes a rule, scoped to the owner.
func (d *DB) DeleteRule(ctx context.Context, userID, id string) error {
	_, err := d.pool.Exec(ctx, "DELETE FROM rules WHERE id = $1 AND owner_id = $2", id, userID)
	return err
}

// MarkRuleFired bumps firing counters in one statement. The CASE keeps the
// daily counter's lazy reset atomic under concurrent evaluators.
func (d *DB) MarkRuleFired(ctx context.Context, ruleID string, firedAt time.Time, day string) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE rules SET last_fired_at = $2, times_fired = times_fired + 1,
			times_fired_today = CASE WHEN last_reset_date = $3 THEN times_fired_today + 1 ELSE 1 END,
			last_reset_date = $3
		 WHERE id = $1`,
		ruleID, firedAt, day)
	return err
}

// ScheduleRules fetches every enabled schedule-trigger rule, across users,
// for the cron scheduler.
func (d *DB) ScheduleRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE trigger_type = $1 AND enabled ORDER BY created_at, id",
		models.TriggerSchedule)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// HomeAssistantRules fetches every enabled entity-trigger rule, across
// users, for rebuilding the ingest associations.
func (d *DB) HomeAssistantRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE trigger_type = $1 AND enabled",
		models.TriggerHomeAssistant)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// EscalationCandidates fetches fired rules with escalation configured, for
// the minutely sweep.
func (d *DB) EscalationCandidates(ctx context.Context) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+ruleColumns+` FROM rules
		 WHERE enabled AND escalation_enabled AND escalation_after_minutes > 0
		   AND escalation_action IS NOT NULL AND last_fired_at IS NOT NULL
		 ORDER BY owner_id, created_at`)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// InsertExecution appends one audit record. Execution rows are never
// updated or deleted.
func (d *DB) InsertExecution(ctx context.Context, e *models.RuleExecution) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO rule_executions (id, rule_id, user_id, triggered_at, trigger_data,
			condition_results, all_conditions_met, actions_executed, explanation, execution_status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.RuleID, e.UserID, e.TriggeredAt, e.TriggerData,
		e.ConditionResults, e.AllConditionsMet, e.ActionResults, e.Explanation, e.Status)
	return err
}

const executionColumns = `id, rule_id, user_id, triggered_at, trigger_data,
	condition_results, all_conditions_met, actions_executed, explanation, execution_status`

func collectExecutions(rows pgx.Rows) ([]models.RuleExecution, error) {
	defer rows.Close()
	var execs []models.RuleExecution
	for rows.Next() {
		var e models.RuleExecution
		if err := rows.Scan(&e.ID, &e.RuleID, &e.UserID, &e.TriggeredAt, &e.TriggerData,
			&e.ConditionResults, &e.AllConditionsMet, &e.ActionResults, &e.Explanation, &e.Status); err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// ExecutionsByRule returns the rule's most recent execution records.
func (d *DB) ExecutionsByRule(ctx context.Context, userID, ruleID string, limit int) ([]models.RuleExecution, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+executionColumns+" FROM rule_executions WHERE user_id = $1 AND rule_id = $2 ORDER BY triggered_at DESC LIMIT $3",
		userID, ruleID, limit)
	if err != nil {
		return nil, err
	}
	return collectExecutions(rows)
}

// ExecutionsByUser returns the user's most recent execution records across
// all rules.
func (d *DB) ExecutionsByUser(ctx context.Context, userID string, limit int) ([]models.RuleExecution, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+executionColumns+" FROM rule_executions WHERE user_id = $1 ORDER BY triggered_at DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, err
	}
	return collectExecutions(rows)
}

// InsertTask creates a task row.
func (d *DB) InsertTask(ctx context.Context, t *models.Task) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO tasks (id, owner_id, title, priority, status, room, due_at, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)",
		t.ID, t.OwnerID, t.Title, t.Priority, t.Status, t.Room, t.DueAt, t.CreatedAt)
	return err
}

// UpdateTaskStatus patches a task's status, scoped to the owner.
func (d *DB) UpdateTaskStatus(ctx context.Context, userID, taskID, status string) error {
	tag, err := d.pool.Exec(ctx,
		"UPDATE tasks SET status = $3 WHERE id = $1 AND owner_id = $2", taskID, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("task not found")
	}
	return nil
}

// GetGoal fetches a goal scoped to the owner. A missing goal returns
// (nil, nil) so callers can treat it as skippable rather than failed.
func (d *DB) GetGoal(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	var g models.Goal
	err := d.pool.QueryRow(ctx,
		"SELECT id, owner_id, name, current_value, target_value FROM goals WHERE id = $1 AND owner_id = $2",
		goalID, userID).Scan(&g.ID, &g.OwnerID, &g.Name, &g.CurrentValue, &g.TargetValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGoalValue writes a goal's numeric value, scoped to the owner.
func (d *DB) UpdateGoalValue(ctx context.Context, userID, goalID string, value float64) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE goals SET current_value = $3 WHERE id = $1 AND owner_id = $2", goalID, userID, value)
	return err
}

// GetUserContext fetches the user's ambient context row, or an empty one
// when none exists yet.
func (d *DB) GetUserContext(ctx context.Context, userID string) (*models.UserContext, error) {
	var uc models.UserContext
	err := d.pool.QueryRow(ctx,
		"SELECT user_id, room, activity, idle_minutes, active_task_id, updated_at FROM user_contexts WHERE user_id = $1",
		userID).Scan(&uc.UserID, &uc.Room, &uc.Activity, &uc.IdleMinutes, &uc.ActiveTaskID, &uc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.UserContext{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// PatchUserContext upserts the user's context row, touching only the fields
// that were supplied.
func (d *DB) PatchUserContext(ctx context.Context, userID string, room, activity *string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO user_contexts (user_id, room, activity, updated_at)
		 VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			room = COALESCE($2, user_contexts.room),
			activity = COALESCE($3, user_contexts.activity),
			updated_at = NOW()`,
		userID, room, activity)
	return err
}

// UpdateIdleState refreshes the activity-derived context fields the
// dashboard reports (idle counter and the task currently in focus).
func (d *DB) UpdateIdleState(ctx context.Context, userID string, idleMinutes int, activeTaskID string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO user_contexts (user_id, idle_minutes, active_task_id, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			idle_minutes = $2, active_task_id = $3, updated_at = NOW()`,
		userID, idleMinutes, activeTaskID)
	return err
}
