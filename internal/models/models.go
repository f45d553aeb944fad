package models

import (
	"encoding/json"
	"time"
)

// Trigger types a rule can subscribe to.
const (
	TriggerHomeAssistant = "home_assistant"
	TriggerCamera        = "camera"
	TriggerSchedule      = "schedule"
	TriggerTaskState     = "task_state"
	TriggerGoalState     = "goal_state"
	TriggerManual        = "manual"
)

// KnownTriggerTypes lists every trigger type the engine accepts.
var KnownTriggerTypes = map[string]bool{
	TriggerHomeAssistant: true,
	TriggerCamera:        true,
	TriggerSchedule:      true,
	TriggerTaskState:     true,
	TriggerGoalState:     true,
	TriggerManual:        true,
}

// Severity levels for rules and notifications.
const (
	SeverityInfo    = "info"
	SeverityNudge   = "nudge"
	SeverityWarning = "warning"
	SeverityUrgent  = "urgent"
)

// Condition types.
const (
	CondTimeOfDay      = "time_of_day"
	CondDayOfWeek      = "day_of_week"
	CondEntityState    = "entity_state"
	CondRoom           = "room"
	CondIdleMinutes    = "idle_minutes"
	CondTaskInProgress = "task_in_progress"
	CondQuietHours     = "quiet_hours"
)

// Action types.
const (
	ActionNotify        = "notify"
	ActionSpeak         = "speak"
	ActionCreateTask    = "create_task"
	ActionUpdateTask    = "update_task"
	ActionHomeAssistant = "home_assistant"
	ActionN8NWebhook    = "n8n_webhook"
	ActionUpdateGoal    = "update_goal"
	ActionSetContext    = "set_context"
)

// Per-evaluation outcome statuses. Only skipped_conditions, success, partial
// and failed persist an execution row.
const (
	StatusSkippedCooldown     = "skipped_cooldown"
	StatusSkippedDailyCap     = "skipped_daily_cap"
	StatusSkippedExcludedTime = "skipped_excluded_time"
	StatusSkippedExcludedRoom = "skipped_excluded_room"
	StatusSkippedConditions   = "skipped_conditions"
	StatusSuccess             = "success"
	StatusPartial             = "partial"
	StatusFailed              = "failed"
)

// Condition is a single boolean predicate over the evaluation context.
// Value stays raw JSON because it is list-or-scalar depending on the type
// (e.g. quiet_hours carries a list of time ranges, idle_minutes a number).
type Condition struct {
	Type              string          `json:"type"`
	Operator          string          `json:"operator,omitempty"`
	Value             json.RawMessage `json:"value,omitempty"`
	EntityID          string          `json:"entity_id,omitempty"`
	TimeWindowMinutes int             `json:"time_window_minutes,omitempty"`
	Negate            bool            `json:"negate,omitempty"`
}

// TimeRange is a wall-clock range ("HH:MM"). End before Start wraps past
// midnight.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ActionConfig is the typed superset of per-action-type fields. Each action
// type reads only the fields it documents; the rest stay zero.
type ActionConfig struct {
	// notify / speak
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`

	// create_task
	Title        string `json:"title,omitempty"`
	Priority     string `json:"priority,omitempty"`
	DueInMinutes int    `json:"due_in_minutes,omitempty"`

	// update_task
	TaskID string `json:"task_id,omitempty"`
	Status string `json:"status,omitempty"`

	// home_assistant
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	EntityID    string         `json:"entity_id,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`

	// n8n_webhook
	WebhookURL      string `json:"webhook_url,omitempty"`
	PayloadTemplate string `json:"payload_template,omitempty"`

	// update_goal
	GoalID         string   `json:"goal_id,omitempty"`
	IncrementValue *float64 `json:"increment_value,omitempty"`

	// create_task / set_context
	Room string `json:"room,omitempty"`
	// set_context
	Activity string `json:"activity,omitempty"`
}

// Action is one effect a rule performs when its conditions pass.
type Action struct {
	Type   string       `json:"type"`
	Config ActionConfig `json:"config"`
}

// Rule is a user-owned automation unit.
type Rule struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Enabled     bool   `json:"is_enabled"`
	Severity    string `json:"severity"`

	TriggerType   string         `json:"trigger_type"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`

	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`

	CooldownMinutes int         `json:"cooldown_minutes"`
	MaxFiresPerDay  *int        `json:"max_fires_per_day,omitempty"`
	ExcludedRooms   []string    `json:"excluded_rooms,omitempty"`
	ExcludedTimes   []TimeRange `json:"excluded_times,omitempty"`

	ExplanationTemplate string `json:"explanation_template,omitempty"`

	EscalationEnabled      bool    `json:"escalation_enabled"`
	EscalationAfterMinutes int     `json:"escalation_after_minutes,omitempty"`
	EscalationAction       *Action `json:"escalation_action,omitempty"`

	LastFiredAt     *time.Time `json:"last_fired_at,omitempty"`
	TimesFired      int        `json:"times_fired"`
	TimesFiredToday int        `json:"times_fired_today"`
	LastResetDate   string     `json:"last_reset_date,omitempty"` // YYYY-MM-DD

	CreatedAt time.Time `json:"created_at"`
}

// ConditionResult is one condition's audit entry: the condition as written,
// the boolean outcome, and the value actually observed in the context.
type ConditionResult struct {
	Condition Condition `json:"condition"`
	Result    bool      `json:"result"`
	Actual    any       `json:"actual"`
}

// ActionResult is one action's audit entry. Staged actions (notify, speak,
// home_assistant, n8n_webhook) carry their payload in Result for the caller
// to deliver.
type ActionResult struct {
	Type    string         `json:"type"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RuleExecution is an immutable audit record of one evaluation attempt of
// one rule. Created solely by the engine, never mutated.
type RuleExecution struct {
	ID               string            `json:"id"`
	RuleID           string            `json:"rule_id"`
	UserID           string            `json:"user_id"`
	TriggeredAt      time.Time         `json:"triggered_at"`
	TriggerData      map[string]any    `json:"trigger_data,omitempty"`
	ConditionResults []ConditionResult `json:"condition_results"`
	AllConditionsMet bool              `json:"all_conditions_met"`
	ActionResults    []ActionResult    `json:"actions_executed"`
	Explanation      string            `json:"explanation,omitempty"`
	Status           string            `json:"execution_status"`
}

// Task is a dashboard task row, touched by create_task/update_task actions.
type Task struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Priority  string     `json:"priority,omitempty"`
	Status    string     `json:"status"`
	Room      string     `json:"room,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Goal is a dashboard goal row with a numeric progress value.
type Goal struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"owner_id"`
	Name         string  `json:"name"`
	CurrentValue float64 `json:"current_value"`
	TargetValue  float64 `json:"target_value,omitempty"`
}

// UserContext is the persisted ambient state for one user (written by the
// set_context action, read when building evaluation snapshots).
type UserContext struct {
	UserID       string    `json:"user_id"`
	Room         string    `json:"room,omitempty"`
	Activity     string    `json:"activity,omitempty"`
	IdleMinutes  int       `json:"idle_minutes"`
	ActiveTaskID string    `json:"active_task_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
