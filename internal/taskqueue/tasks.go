package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"lifehub/internal/db"
	"lifehub/internal/forwarder"
	"lifehub/internal/models"
	"lifehub/internal/rules"
	"lifehub/internal/utils"
)

// Task type names.
const (
	TypeEvaluateTrigger = "trigger:evaluate"
	TypeEscalationSweep = "escalation:sweep"
)

// Global instances - these should be initialized by the main application
var (
	dbConn      *db.DB
	redisClient *redis.Client
	engine      *rules.Engine
	fwd         *forwarder.Forwarder
)

// SetGlobalInstances sets the shared database, Redis, engine and forwarder
// instances the workers run against.
func SetGlobalInstances(database *db.DB, redis *redis.Client, eng *rules.Engine, f *forwarder.Forwarder) {
	dbConn = database
	redisClient = redis
	engine = eng
	fwd = f
}

// TriggerTaskPayload carries one trigger event to the worker.
type TriggerTaskPayload struct {
	UserID      string         `json:"user_id"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// EnqueueTrigger enqueues a rule evaluation for one user's trigger event.
func EnqueueTrigger(userID, triggerType string, triggerData map[string]any) error {
	payload, _ := json.Marshal(TriggerTaskPayload{
		UserID:      userID,
		TriggerType: triggerType,
		TriggerData: triggerData,
	})
	task := asynq.NewTask(TypeEvaluateTrigger, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
	if err != nil {
		log.Printf("TASKQUEUE: Failed to enqueue %s trigger for user %s: %v", triggerType, userID, err)
		return err
	}
	log.Printf("TASKQUEUE: Enqueued task %s (%s trigger, user %s)", info.ID, triggerType, userID)
	return nil
}

// EnqueueEscalationSweep enqueues one pass over escalation-enabled rules.
func EnqueueEscalationSweep() error {
	task := asynq.NewTask(TypeEscalationSweep, nil)
	_, err := asynqClient.Enqueue(task, asynq.MaxRetry(1), asynq.Timeout(30*time.Second))
	return err
}

// BuildContext assembles the evaluation snapshot for one user: the persisted
// ambient context row, the cached entity states, and the wall clock.
func BuildContext(ctx context.Context, userID string) (rules.Context, error) {
	uc, err := dbConn.GetUserContext(ctx, userID)
	if err != nil {
		return rules.Context{}, fmt.Errorf("loading context for user %s: %w", userID, err)
	}

	now := time.Now()
	return rules.Context{
		Room:         uc.Room,
		Activity:     uc.Activity,
		IdleMinutes:  uc.IdleMinutes,
		ActiveTaskID: uc.ActiveTaskID,
		TimeOfDay:    utils.TimeOfDayBucket(now.Hour()),
		DayOfWeek:    int(now.Weekday()),
		Hour:         now.Hour(),
		Minute:       now.Minute(),
		EntityStates: entityStates(ctx),
	}, nil
}

// entityStates snapshots the ingest layer's cached entity states.
func entityStates(ctx context.Context) map[string]any {
	states := map[string]any{}
	if redisClient == nil {
		return states
	}
	keys, err := redisClient.Keys(ctx, utils.EntityStatePrefix+"*").Result()
	if err != nil {
		return states
	}
	for _, key := range keys {
		state, err := redisClient.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		states[strings.TrimPrefix(key, utils.EntityStatePrefix)] = state
	}
	return states
}

// evaluateTriggerTask runs the engine for one trigger event and delivers
// whatever the fired rules staged.
func evaluateTriggerTask(ctx context.Context, t *asynq.Task) error {
	var payload TriggerTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Printf("TASKQUEUE: Failed to unmarshal trigger payload: %v", err)
		return err
	}

	ectx, err := BuildContext(ctx, payload.UserID)
	if err != nil {
		log.Printf("TASKQUEUE: %v", err)
		return err
	}

	result, err := engine.Evaluate(ctx, payload.UserID, payload.TriggerType, payload.TriggerData, ectx)
	if err != nil {
		log.Printf("TASKQUEUE: Evaluation failed for user %s: %v", payload.UserID, err)
		return err
	}
	log.Printf("TASKQUEUE: User %s trigger %s: %d rules fired of %d matched",
		payload.UserID, payload.TriggerType, result.Executed, len(result.Results))

	for _, outcome := range result.Results {
		if len(outcome.Actions) > 0 {
			fwd.Deliver(payload.UserID, outcome.Actions, ectx, payload.TriggerData)
		}
	}
	return nil
}

// releaseEscalationClaim reports whether the sweep should give the firing's
// dedup key back: the rule was not due, or its conditions cleared at this
// tick. A released firing may still escalate on a later sweep if the
// condition re-asserts within the dedup TTL.
func releaseEscalationClaim(outcome *rules.Outcome) bool {
	return outcome == nil || outcome.Status == models.StatusSkippedConditions
}

// escalationSweepTask re-checks fired rules whose escalation delay elapsed.
// Each firing escalates at most once, deduplicated in Redis.
func escalationSweepTask(ctx context.Context, t *asynq.Task) error {
	candidates, err := dbConn.EscalationCandidates(ctx)
	if err != nil {
		log.Printf("TASKQUEUE: Failed to load escalation candidates: %v", err)
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	contexts := map[string]rules.Context{}
	for _, rule := range candidates {
		ectx, ok := contexts[rule.OwnerID]
		if !ok {
			ectx, err = BuildContext(ctx, rule.OwnerID)
			if err != nil {
				log.Printf("TASKQUEUE: %v", err)
				continue
			}
			contexts[rule.OwnerID] = ectx
		}

		dedupKey := fmt.Sprintf("escalated:%s:%d", rule.ID, rule.LastFiredAt.Unix())
		set, err := redisClient.SetNX(ctx, dedupKey, "1", 24*time.Hour).Result()
		if err != nil || !set {
			continue
		}

		outcome := engine.EvaluateEscalation(ctx, rule, ectx)
		if releaseEscalationClaim(outcome) {
			// Not due yet, or the condition cleared at this tick; release
			// the claim so a later sweep can retry this firing.
			redisClient.Del(ctx, dedupKey)
			continue
		}
		if len(outcome.Actions) > 0 {
			fwd.Deliver(rule.OwnerID, outcome.Actions, ectx, map[string]any{"escalation": true})
		}
	}
	return nil
}
