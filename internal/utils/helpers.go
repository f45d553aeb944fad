package utils

import (
	"strings"
	"time"
)

// Redis key prefixes shared between the ingest and taskqueue layers.
const (
	EntityStatePrefix  = "entity_state:"
	EntityStreamPrefix = "stream:entity:"
	EntityUsersPrefix  = "entity_users:"
)

// ParseEntityID extracts a Home Assistant style entity id from a
// statestream topic, e.g. "lifehub/statestream/light/living_room/state"
// becomes "light.living_room".
func ParseEntityID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[2] + "." + parts[3]
}

// TimeOfDayBucket maps an hour to the coarse bucket rules condition on.
func TimeOfDayBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// Today formats a calendar day the way the firing counters store it.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}
