package rules

import (
	"fmt"
	"strings"
)

// RenderExplanation fills a rule's explanation template from the evaluation
// context and the trigger payload. Context tokens are substituted first,
// then one {key} token per trigger-data entry. A missing template renders
// to the empty string. The result is audit display only; it never drives
// control flow.
func RenderExplanation(template string, ectx Context, triggerData map[string]any) string {
	if template == "" {
		return ""
	}

	r := strings.NewReplacer(
		"{idle_minutes}", fmt.Sprint(ectx.IdleMinutes),
		"{room}", ectx.Room,
		"{activity}", ectx.Activity,
		"{time_of_day}", ectx.TimeOfDay,
	)
	out := r.Replace(template)

	for key, val := range triggerData {
		out = strings.ReplaceAll(out, "{"+key+"}", fmt.Sprint(val))
	}
	return out
}
