package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderExplanation(t *testing.T) {
	ectx := Context{Room: "office", Activity: "working", IdleMinutes: 40, TimeOfDay: "afternoon"}

	out := RenderExplanation(
		"You've been idle for {idle_minutes} minutes in the {room} this {time_of_day}",
		ectx, nil)
	assert.Equal(t, "You've been idle for 40 minutes in the office this afternoon", out)
}

func TestRenderExplanationTriggerData(t *testing.T) {
	out := RenderExplanation(
		"{entity_id} changed from {old_state} to {new_state}",
		Context{},
		map[string]any{"entity_id": "light.kitchen", "old_state": "off", "new_state": "on"})
	assert.Equal(t, "light.kitchen changed from off to on", out)
}

func TestRenderExplanationUnknownTokensStay(t *testing.T) {
	out := RenderExplanation("room is {room}, {mystery} stays", Context{Room: "hall"}, nil)
	assert.Equal(t, "room is hall, {mystery} stays", out)
}

func TestRenderExplanationEmptyTemplate(t *testing.T) {
	assert.Equal(t, "", RenderExplanation("", Context{Room: "hall"}, map[string]any{"k": "v"}))
}
