package rules

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/models"
)

// fakeStore is the in-memory Store used by the engine tests. Error fields
// make individual operations fail on demand.
type fakeStore struct {
	rules      []models.Rule
	executions []models.RuleExecution
	tasks      []models.Task
	goals      map[string]*models.Goal
	goalValues map[string]float64
	patches    []string

	loadErr      error
	insertErr    error
	taskErr      error
	goalErr      error
	markedFired  []string
	lastFiredDay string
}

func newFakeStore() *fakeStore {
	return &fakeStore{goals: map[string]*models.Goal{}, goalValues: map[string]float64{}}
}

func (f *fakeStore) RulesForTrigger(_ context.Context, userID, triggerType string) ([]models.Rule, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []models.Rule
	for _, r := range f.rules {
		if r.OwnerID == userID && r.TriggerType == triggerType && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertExecution(_ context.Context, exec *models.RuleExecution) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.executions = append(f.executions, *exec)
	return nil
}

func (f *fakeStore) MarkRuleFired(_ context.Context, ruleID string, _ time.Time, day string) error {
	f.markedFired = append(f.markedFired, ruleID)
	f.lastFiredDay = day
	return nil
}

func (f *fakeStore) InsertTask(_ context.Context, task *models.Task) error {
	if f.taskErr != nil {
		return f.taskErr
	}
	f.tasks = append(f.tasks, *task)
	return nil
}

func (f *fakeStore) UpdateTaskStatus(_ context.Context, _, taskID, status string) error {
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			f.tasks[i].Status = status
			return nil
		}
	}
	return errors.New("task not found")
}

func (f *fakeStore) GetGoal(_ context.Context, _, goalID string) (*models.Goal, error) {
	if f.goalErr != nil {
		return nil, f.goalErr
	}
	return f.goals[goalID], nil
}

func (f *fakeStore) UpdateGoalValue(_ context.Context, _, goalID string, value float64) error {
	f.goalValues[goalID] = value
	return nil
}

func (f *fakeStore) PatchUserContext(_ context.Context, userID string, room, activity *string) error {
	patch := userID + ":"
	if room != nil {
		patch += *room
	}
	patch += "/"
	if activity != nil {
		patch += *activity
	}
	f.patches = append(f.patches, patch)
	return nil
}

func testEngine(store *fakeStore, now time.Time) *Engine {
	e := NewEngine(store)
	e.now = func() time.Time { return now }
	return e
}

func notifyAction(msg string) models.Action {
	return models.Action{Type: models.ActionNotify, Config: models.ActionConfig{Message: msg}}
}

func TestEvaluateRejectsBadScope(t *testing.T) {
	e := NewEngine(newFakeStore())

	_, err := e.Evaluate(context.Background(), "", models.TriggerManual, nil, Context{})
	assert.Error(t, err)

	_, err = e.Evaluate(context.Background(), "u1", "teleport", nil, Context{})
	assert.Error(t, err)
}

func TestEvaluatePropagatesLoadError(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("db down")

	_, err := NewEngine(store).Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	assert.Error(t, err)
}

func TestEvaluateFiresAndAudits(t *testing.T) {
	now := time.Date(2026, 3, 10, 19, 40, 0, 0, time.UTC)
	store := newFakeStore()
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Name: "idle nudge", Enabled: true, Severity: models.SeverityNudge,
		TriggerType: models.TriggerCamera,
		Conditions: []models.Condition{
			{Type: models.CondIdleMinutes, Operator: "greater_than", Value: json.RawMessage(`30`)},
		},
		Actions:             []models.Action{notifyAction("stretch your legs")},
		ExplanationTemplate: "idle {idle_minutes}m in {room}",
	}}
	e := testEngine(store, now)

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerCamera,
		map[string]any{"event": "person_idle"},
		Context{Room: "office", IdleMinutes: 45, Hour: 19, Minute: 40})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Executed)
	require.Len(t, res.Results, 1)
	assert.Equal(t, models.StatusSuccess, res.Results[0].Status)
	assert.Equal(t, "idle 45m in office", res.Results[0].Explanation)

	require.Len(t, store.executions, 1)
	exec := store.executions[0]
	assert.Equal(t, "r1", exec.RuleID)
	assert.True(t, exec.AllConditionsMet)
	assert.Equal(t, models.StatusSuccess, exec.Status)
	require.Len(t, exec.ActionResults, 1)
	assert.Equal(t, true, exec.ActionResults[0].Result["staged"])
	assert.Equal(t, models.SeverityNudge, exec.ActionResults[0].Result["severity"])

	assert.Equal(t, []string{"r1"}, store.markedFired)
	assert.Equal(t, "2026-03-10", store.lastFiredDay)
}

func TestEvaluateAllConditionsMustHold(t *testing.T) {
	store := newFakeStore()
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
		Conditions: []models.Condition{
			{Type: models.CondRoom, Value: json.RawMessage(`"office"`)},
			{Type: models.CondIdleMinutes, Operator: "greater_than", Value: json.RawMessage(`30`)},
		},
		Actions: []models.Action{notifyAction("hi")},
	}}
	e := testEngine(store, time.Now())

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil,
		Context{Room: "office", IdleMinutes: 10})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, models.StatusSkippedConditions, res.Results[0].Status)

	// the attempt is audited, with every condition's actual value recorded
	require.Len(t, store.executions, 1)
	exec := store.executions[0]
	assert.False(t, exec.AllConditionsMet)
	assert.Empty(t, exec.ActionResults)
	require.Len(t, exec.ConditionResults, 2)
	assert.True(t, exec.ConditionResults[0].Result)
	assert.False(t, exec.ConditionResults[1].Result)
	assert.Equal(t, 10, exec.ConditionResults[1].Actual)

	assert.Empty(t, store.markedFired)
}

func TestEvaluateGatesLeaveNoAuditRow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fired := now.Add(-5 * time.Minute)
	store := newFakeStore()
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
		CooldownMinutes: 30, LastFiredAt: &fired,
		Actions: []models.Action{notifyAction("hi")},
	}}
	e := testEngine(store, now)

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSkippedCooldown, res.Results[0].Status)
	assert.Empty(t, store.executions)
	assert.Empty(t, store.markedFired)
}

func TestEvaluateZeroConditionsAlwaysFire(t *testing.T) {
	store := newFakeStore()
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
		Actions: []models.Action{notifyAction("hi")},
	}}
	e := testEngine(store, time.Now())

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, models.StatusSuccess, res.Results[0].Status)
}

func TestEvaluatePartialStatus(t *testing.T) {
	store := newFakeStore()
	store.taskErr = errors.New("insert failed")
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
		Actions: []models.Action{
			notifyAction("hi"),
			{Type: models.ActionCreateTask, Config: models.ActionConfig{Title: "do it"}},
		},
	}}
	e := testEngine(store, time.Now())

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, models.StatusPartial, res.Results[0].Status)

	// a partial fire still bumps the counters
	assert.Equal(t, []string{"r1"}, store.markedFired)
}

func TestEvaluateFailedStatusWhenEveryActionFails(t *testing.T) {
	store := newFakeStore()
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
		Actions: []models.Action{{Type: "warp_drive"}},
	}}
	e := testEngine(store, time.Now())

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Results[0].Status)
	assert.Contains(t, res.Results[0].Actions[0].Error, "unknown action type")
}

func TestEvaluateRunsRulesInOrder(t *testing.T) {
	store := newFakeStore()
	store.rules = []models.Rule{
		{ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
			Actions: []models.Action{notifyAction("first")}},
		{ID: "r2", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
			Actions: []models.Action{notifyAction("second")}},
		{ID: "r3", OwnerID: "u1", Enabled: false, TriggerType: models.TriggerManual,
			Actions: []models.Action{notifyAction("never")}},
	}
	e := testEngine(store, time.Now())

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, "r1", res.Results[0].RuleID)
	assert.Equal(t, "r2", res.Results[1].RuleID)
	assert.Equal(t, []string{"r1", "r2"}, store.markedFired)
}

func TestEvaluateAuditFailureDoesNotFailTheCall(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("audit table gone")
	store.rules = []models.Rule{{
		ID: "r1", OwnerID: "u1", Enabled: true, TriggerType: models.TriggerManual,
		Actions: []models.Action{notifyAction("hi")},
	}}
	e := testEngine(store, time.Now())

	res, err := e.Evaluate(context.Background(), "u1", models.TriggerManual, nil, Context{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, res.Results[0].Status)
	assert.Equal(t, []string{"r1"}, store.markedFired)
}

func TestEscalationNotDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	e := testEngine(store, now)

	esc := &models.Action{Type: models.ActionSpeak, Config: models.ActionConfig{Message: "still idle"}}

	// not enabled
	assert.Nil(t, e.EvaluateEscalation(context.Background(), models.Rule{EscalationAction: esc}, Context{}))

	// never fired
	assert.Nil(t, e.EvaluateEscalation(context.Background(), models.Rule{
		EscalationEnabled: true, EscalationAction: esc,
	}, Context{}))

	// delay not elapsed
	fired := now.Add(-5 * time.Minute)
	assert.Nil(t, e.EvaluateEscalation(context.Background(), models.Rule{
		EscalationEnabled: true, EscalationAction: esc,
		EscalationAfterMinutes: 15, LastFiredAt: &fired,
	}, Context{}))

	assert.Empty(t, store.executions)
}

func TestEscalationFiresWhenConditionsHold(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fired := now.Add(-20 * time.Minute)
	store := newFakeStore()
	e := testEngine(store, now)

	rule := models.Rule{
		ID: "r1", OwnerID: "u1", Name: "idle nudge",
		Conditions: []models.Condition{
			{Type: models.CondIdleMinutes, Operator: "greater_than", Value: json.RawMessage(`30`)},
		},
		EscalationEnabled:      true,
		EscalationAfterMinutes: 15,
		EscalationAction:       &models.Action{Type: models.ActionSpeak, Config: models.ActionConfig{Message: "really, move"}},
		LastFiredAt:            &fired,
	}

	outcome := e.EvaluateEscalation(context.Background(), rule, Context{IdleMinutes: 60})
	require.NotNil(t, outcome)
	assert.Equal(t, models.StatusSuccess, outcome.Status)
	require.Len(t, outcome.Actions, 1)
	assert.Equal(t, models.ActionSpeak, outcome.Actions[0].Type)

	require.Len(t, store.executions, 1)
	assert.Equal(t, map[string]any{"escalation": true}, store.executions[0].TriggerData)

	// escalation never touches firing counters
	assert.Empty(t, store.markedFired)
}

func TestEscalationSkipsWhenConditionCleared(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fired := now.Add(-20 * time.Minute)
	store := newFakeStore()
	e := testEngine(store, now)

	rule := models.Rule{
		ID: "r1", OwnerID: "u1",
		Conditions: []models.Condition{
			{Type: models.CondIdleMinutes, Operator: "greater_than", Value: json.RawMessage(`30`)},
		},
		EscalationEnabled:      true,
		EscalationAfterMinutes: 15,
		EscalationAction:       &models.Action{Type: models.ActionSpeak},
		LastFiredAt:            &fired,
	}

	outcome := e.EvaluateEscalation(context.Background(), rule, Context{IdleMinutes: 2})
	require.NotNil(t, outcome)
	assert.Equal(t, models.StatusSkippedConditions, outcome.Status)
	assert.Empty(t, outcome.Actions)
	assert.Empty(t, store.executions)
}
