package rules

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"lifehub/internal/models"
)

// Engine evaluates a user's rules for one trigger event. Rules are processed
// strictly in order: a later rule may read state an earlier rule's actions
// just wrote.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Outcome is the per-rule result returned to the caller.
type Outcome struct {
	RuleID      string                `json:"rule_id"`
	RuleName    string                `json:"rule_name"`
	Status      string                `json:"status"`
	Explanation string                `json:"explanation,omitempty"`
	Actions     []models.ActionResult `json:"actions,omitempty"`
}

// Result aggregates one Evaluate call. Executed counts the rules whose
// actions were dispatched.
type Result struct {
	Executed int       `json:"executed"`
	Results  []Outcome `json:"results"`
}

// Evaluate runs every enabled rule of the user matching the trigger type
// through the rate-limit gates, condition evaluation and action dispatch,
// persisting an execution record per attempt that got past the gates.
// It fails only when the scope is invalid or the rule set cannot be loaded;
// per-rule trouble is recorded in that rule's outcome.
func (e *Engine) Evaluate(ctx context.Context, userID, triggerType string, triggerData map[string]any, ectx Context) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("evaluate: missing user id")
	}
	if !models.KnownTriggerTypes[triggerType] {
		return nil, fmt.Errorf("evaluate: unknown trigger type %q", triggerType)
	}

	matched, err := e.store.RulesForTrigger(ctx, userID, triggerType)
	if err != nil {
		return nil, fmt.Errorf("evaluate: loading rules for user %s: %w", userID, err)
	}

	result := &Result{Results: []Outcome{}}
	if len(matched) == 0 {
		return result, nil
	}
	log.Printf("RULES: Evaluating %d rules for user %s, trigger %s", len(matched), userID, triggerType)

	now := e.now()
	for _, rule := range matched {
		outcome := e.evaluateRule(ctx, rule, triggerType, triggerData, ectx, now)
		if outcome.Status == models.StatusSuccess || outcome.Status == models.StatusPartial ||
			outcome.Status == models.StatusFailed {
			result.Executed++
		}
		result.Results = append(result.Results, outcome)
	}
	return result, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule models.Rule, triggerType string, triggerData map[string]any, ectx Context, now time.Time) Outcome {
	outcome := Outcome{RuleID: rule.ID, RuleName: rule.Name}

	// Gates are cheapest-first and produce no audit row: a structurally
	// ineligible rule says nothing about the context.
	if status, blocked := CheckRateLimits(rule, ectx, now); blocked {
		log.Printf("RULES: Rule %s blocked: %s", rule.ID, status)
		outcome.Status = status
		return outcome
	}

	condResults := make([]models.ConditionResult, 0, len(rule.Conditions))
	allMet := true
	for _, cond := range rule.Conditions {
		ok, actual := EvaluateCondition(cond, ectx)
		condResults = append(condResults, models.ConditionResult{Condition: cond, Result: ok, Actual: actual})
		if !ok {
			allMet = false
		}
	}

	if !allMet {
		outcome.Status = models.StatusSkippedConditions
		e.persistExecution(ctx, &models.RuleExecution{
			ID:               uuid.NewString(),
			RuleID:           rule.ID,
			UserID:           rule.OwnerID,
			TriggeredAt:      now,
			TriggerData:      triggerData,
			ConditionResults: condResults,
			AllConditionsMet: false,
			ActionResults:    []models.ActionResult{},
			Status:           models.StatusSkippedConditions,
		})
		return outcome
	}

	actionResults := e.DispatchActions(ctx, rule, ectx)
	outcome.Status = statusForActions(actionResults)
	outcome.Actions = actionResults
	outcome.Explanation = RenderExplanation(rule.ExplanationTemplate, ectx, triggerData)
	log.Printf("RULES: Rule %s (%s) fired with status %s", rule.ID, rule.Name, outcome.Status)

	e.persistExecution(ctx, &models.RuleExecution{
		ID:               uuid.NewString(),
		RuleID:           rule.ID,
		UserID:           rule.OwnerID,
		TriggeredAt:      now,
		TriggerData:      triggerData,
		ConditionResults: condResults,
		AllConditionsMet: true,
		ActionResults:    actionResults,
		Explanation:      outcome.Explanation,
		Status:           outcome.Status,
	})

	if err := e.store.MarkRuleFired(ctx, rule.ID, now, today(now)); err != nil {
		// Actions already ran; a bookkeeping failure must not fail the call.
		log.Printf("RULES: Failed to update firing counters for rule %s: %v", rule.ID, err)
	}
	return outcome
}

// persistExecution appends the audit record. Dispatched actions are
// authoritative even when the audit write fails, so errors are only logged.
func (e *Engine) persistExecution(ctx context.Context, exec *models.RuleExecution) {
	if err := e.store.InsertExecution(ctx, exec); err != nil {
		log.Printf("RULES: Failed to log execution for rule %s: %v", exec.RuleID, err)
	}
}

// statusForActions folds per-action results into the coarse status: success
// when everything succeeded, failed when nothing did, partial for a mix.
func statusForActions(results []models.ActionResult) string {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(results):
		return models.StatusSuccess
	case succeeded == 0:
		return models.StatusFailed
	default:
		return models.StatusPartial
	}
}

// EvaluateEscalation re-checks one fired rule on behalf of the escalation
// sweep. When the rule's conditions still hold after the configured delay,
// the single escalation action is dispatched and logged. Returns nil when
// the rule is not due (not escalation-enabled, never fired, or the delay
// has not elapsed). Firing counters are untouched: escalation is secondary
// to the firing it follows.
func (e *Engine) EvaluateEscalation(ctx context.Context, rule models.Rule, ectx Context) *Outcome {
	if !rule.EscalationEnabled || rule.EscalationAction == nil || rule.LastFiredAt == nil {
		return nil
	}
	now := e.now()
	delay := time.Duration(rule.EscalationAfterMinutes) * time.Minute
	if now.Sub(*rule.LastFiredAt) < delay {
		return nil
	}

	outcome := &Outcome{RuleID: rule.ID, RuleName: rule.Name}

	condResults := make([]models.ConditionResult, 0, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		ok, actual := EvaluateCondition(cond, ectx)
		condResults = append(condResults, models.ConditionResult{Condition: cond, Result: ok, Actual: actual})
		if !ok {
			// Condition cleared itself; nothing to escalate.
			outcome.Status = models.StatusSkippedConditions
			return outcome
		}
	}

	res := e.dispatchAction(ctx, rule, *rule.EscalationAction, ectx)
	outcome.Actions = []models.ActionResult{res}
	outcome.Status = statusForActions(outcome.Actions)
	outcome.Explanation = RenderExplanation(rule.ExplanationTemplate, ectx, nil)
	log.Printf("RULES: Escalation for rule %s dispatched with status %s", rule.ID, outcome.Status)

	e.persistExecution(ctx, &models.RuleExecution{
		ID:               uuid.NewString(),
		RuleID:           rule.ID,
		UserID:           rule.OwnerID,
		TriggeredAt:      now,
		TriggerData:      map[string]any{"escalation": true},
		ConditionResults: condResults,
		AllConditionsMet: true,
		ActionResults:    outcome.Actions,
		Explanation:      outcome.Explanation,
		Status:           outcome.Status,
	})
	return outcome
}
