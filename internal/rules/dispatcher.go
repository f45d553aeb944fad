package rules

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"lifehub/internal/models"
)

// DispatchActions executes a rule's action list in order against the store
// and collects one result per action. A failing action never aborts the
// remaining ones. Actions with an external delivery channel (notify, speak,
// home_assistant, n8n_webhook) are not performed here: their payload is
// staged in the result for the caller to deliver, which keeps this package
// free of network I/O.
func (e *Engine) DispatchActions(ctx context.Context, rule models.Rule, ectx Context) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		results = append(results, e.dispatchAction(ctx, rule, action, ectx))
	}
	return results
}

func (e *Engine) dispatchAction(ctx context.Context, rule models.Rule, action models.Action, ectx Context) models.ActionResult {
	cfg := action.Config
	res := models.ActionResult{Type: action.Type}

	switch action.Type {
	case models.ActionNotify, models.ActionSpeak:
		severity := cfg.Severity
		if severity == "" {
			severity = rule.Severity
		}
		res.Success = true
		res.Result = map[string]any{
			"staged":   true,
			"message":  cfg.Message,
			"severity": severity,
		}

	case models.ActionCreateTask:
		task := &models.Task{
			ID:        uuid.NewString(),
			OwnerID:   rule.OwnerID,
			Title:     cfg.Title,
			Priority:  cfg.Priority,
			Status:    "pending",
			Room:      cfg.Room,
			CreatedAt: e.now(),
		}
		if cfg.DueInMinutes > 0 {
			due := e.now().Add(time.Duration(cfg.DueInMinutes) * time.Minute)
			task.DueAt = &due
		}
		if err := e.store.InsertTask(ctx, task); err != nil {
			res.Error = err.Error()
			break
		}
		res.Success = true
		res.Result = map[string]any{"task_id": task.ID}

	case models.ActionUpdateTask:
		if err := e.store.UpdateTaskStatus(ctx, rule.OwnerID, cfg.TaskID, cfg.Status); err != nil {
			res.Error = err.Error()
			break
		}
		res.Success = true
		res.Result = map[string]any{"task_id": cfg.TaskID, "status": cfg.Status}

	case models.ActionUpdateGoal:
		goal, err := e.store.GetGoal(ctx, rule.OwnerID, cfg.GoalID)
		if err != nil {
			res.Error = err.Error()
			break
		}
		if goal == nil {
			// A vanished goal is not a failure for the rule.
			log.Printf("RULES: update_goal skipped, goal %s not found for user %s", cfg.GoalID, rule.OwnerID)
			res.Success = true
			res.Result = map[string]any{"skipped": true, "goal_id": cfg.GoalID}
			break
		}
		increment := 1.0
		if cfg.IncrementValue != nil {
			increment = *cfg.IncrementValue
		}
		newValue := goal.CurrentValue + increment
		if err := e.store.UpdateGoalValue(ctx, rule.OwnerID, cfg.GoalID, newValue); err != nil {
			res.Error = err.Error()
			break
		}
		res.Success = true
		res.Result = map[string]any{"goal_id": cfg.GoalID, "value": newValue}

	case models.ActionSetContext:
		var room, activity *string
		if cfg.Room != "" {
			room = &cfg.Room
		}
		if cfg.Activity != "" {
			activity = &cfg.Activity
		}
		if room == nil && activity == nil {
			res.Success = true
			res.Result = map[string]any{"skipped": true}
			break
		}
		if err := e.store.PatchUserContext(ctx, rule.OwnerID, room, activity); err != nil {
			res.Error = err.Error()
			break
		}
		res.Success = true
		res.Result = map[string]any{"room": cfg.Room, "activity": cfg.Activity}

	case models.ActionHomeAssistant:
		res.Success = true
		res.Result = map[string]any{
			"staged":       true,
			"domain":       cfg.Domain,
			"service":      cfg.Service,
			"entity_id":    cfg.EntityID,
			"service_data": cfg.ServiceData,
		}

	case models.ActionN8NWebhook:
		res.Success = true
		res.Result = map[string]any{
			"staged":           true,
			"webhook_url":      cfg.WebhookURL,
			"payload_template": cfg.PayloadTemplate,
		}

	default:
		res.Error = fmt.Sprintf("unknown action type: %s", action.Type)
	}

	return res
}
