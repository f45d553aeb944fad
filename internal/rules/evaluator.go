package rules

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"lifehub/internal/models"
)

// EvaluateCondition evaluates a single condition against the context and
// returns the boolean outcome plus the actual value observed, for audit.
// It never fails: an unknown condition type yields (false, nil). Negate is
// applied after the type-specific logic.
func EvaluateCondition(cond models.Condition, ectx Context) (bool, any) {
	result, actual := evaluateTyped(cond, ectx)
	if cond.Negate {
		result = !result
	}
	return result, actual
}

func evaluateTyped(cond models.Condition, ectx Context) (bool, any) {
	switch cond.Type {
	case models.CondTimeOfDay:
		return matchScalarOrList(ectx.TimeOfDay, cond.Value), ectx.TimeOfDay

	case models.CondDayOfWeek:
		return matchScalarOrList(float64(ectx.DayOfWeek), cond.Value), ectx.DayOfWeek

	case models.CondEntityState:
		actual, ok := ectx.EntityStates[cond.EntityID]
		if !ok {
			actual = nil
		}
		return looseEqual(actual, decodeValue(cond.Value)), actual

	case models.CondRoom:
		expected, _ := decodeValue(cond.Value).(string)
		if cond.Operator == "not_equals" {
			return ectx.Room != expected, ectx.Room
		}
		return ectx.Room == expected, ectx.Room

	case models.CondIdleMinutes:
		actual := float64(ectx.IdleMinutes)
		threshold, ok := toFloat(decodeValue(cond.Value))
		if !ok {
			return false, ectx.IdleMinutes
		}
		switch cond.Operator {
		case "greater_than":
			return actual > threshold, ectx.IdleMinutes
		case "less_than":
			return actual < threshold, ectx.IdleMinutes
		default:
			return actual == threshold, ectx.IdleMinutes
		}

	case models.CondTaskInProgress:
		actual := ectx.ActiveTaskID != ""
		if want, ok := decodeValue(cond.Value).(bool); ok && want {
			return actual, actual
		}
		return !actual, actual

	case models.CondQuietHours:
		now := ectx.MinutesSinceMidnight()
		var ranges []models.TimeRange
		if err := json.Unmarshal(cond.Value, &ranges); err != nil {
			return false, now
		}
		for _, r := range ranges {
			if inTimeRange(now, r) {
				return true, now
			}
		}
		return false, now
	}

	log.Printf("RULES: Unknown condition type: %s", cond.Type)
	return false, nil
}

// matchScalarOrList compares actual against the raw value: membership when
// the value is a JSON list, equality otherwise.
func matchScalarOrList(actual any, raw json.RawMessage) bool {
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if looseEqual(actual, v) {
				return true
			}
		}
		return false
	}
	return looseEqual(actual, decodeValue(raw))
}

// inTimeRange reports whether t (minutes since midnight) falls inside the
// range. A range whose end precedes its start wraps past midnight.
func inTimeRange(t int, r models.TimeRange) bool {
	start, okS := parseClock(r.Start)
	end, okE := parseClock(r.End)
	if !okS || !okE {
		return false
	}
	if end < start {
		return t >= start || t < end
	}
	return t >= start && t < end
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func decodeValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// looseEqual compares across the type mixes loosely-stored rule values
// produce: numbers against numeric strings, everything else by string form.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// toFloat coerces numeric values, including numeric strings, to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
