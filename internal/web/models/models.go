package models

import (
	coremodels "lifehub/internal/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"username"`
	Email string `json:"email"`
}

type AddRuleRequest struct {
	Name                   string                  `json:"name" binding:"required"`
	Description            string                  `json:"description"`
	Category               string                  `json:"category"`
	Enabled                *bool                   `json:"is_enabled"`
	Severity               string                  `json:"severity"`
	TriggerType            string                  `json:"trigger_type" binding:"required"`
	TriggerConfig          map[string]any          `json:"trigger_config"`
	Conditions             []coremodels.Condition  `json:"conditions"`
	Actions                []coremodels.Action     `json:"actions"`
	CooldownMinutes        *int                    `json:"cooldown_minutes"`
	MaxFiresPerDay         *int                    `json:"max_fires_per_day"`
	ExcludedRooms          []string                `json:"excluded_rooms"`
	ExcludedTimes          []coremodels.TimeRange  `json:"excluded_times"`
	ExplanationTemplate    string                  `json:"explanation_template"`
	EscalationEnabled      bool                    `json:"escalation_enabled"`
	EscalationAfterMinutes int                     `json:"escalation_after_minutes"`
	EscalationAction       *coremodels.Action      `json:"escalation_action"`
}

type UpdateRuleRequest struct {
	Name                   *string                 `json:"name"`
	Description            *string                 `json:"description"`
	Category               *string                 `json:"category"`
	Enabled                *bool                   `json:"is_enabled"`
	Severity               *string                 `json:"severity"`
	TriggerType            *string                 `json:"trigger_type"`
	TriggerConfig          *map[string]any         `json:"trigger_config"`
	Conditions             *[]coremodels.Condition `json:"conditions"`
	Actions                *[]coremodels.Action    `json:"actions"`
	CooldownMinutes        *int                    `json:"cooldown_minutes"`
	MaxFiresPerDay         *int                    `json:"max_fires_per_day"`
	ExcludedRooms          *[]string               `json:"excluded_rooms"`
	ExcludedTimes          *[]coremodels.TimeRange `json:"excluded_times"`
	ExplanationTemplate    *string                 `json:"explanation_template"`
	EscalationEnabled      *bool                   `json:"escalation_enabled"`
	EscalationAfterMinutes *int                    `json:"escalation_after_minutes"`
	EscalationAction       *coremodels.Action      `json:"escalation_action"`
}

// EventRequest is an externally supplied trigger event (camera tag, task or
// goal state change, manual signal).
type EventRequest struct {
	TriggerType string         `json:"trigger_type" binding:"required"`
	TriggerData map[string]any `json:"trigger_data"`
}

// ContextPatchRequest updates the caller-reported ambient context.
type ContextPatchRequest struct {
	Room         *string `json:"room"`
	Activity     *string `json:"activity"`
	IdleMinutes  *int    `json:"idle_minutes"`
	ActiveTaskID *string `json:"active_task_id"`
}
