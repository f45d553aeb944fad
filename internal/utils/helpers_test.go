package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEntityID(t *testing.T) {
	assert.Equal(t, "light.living_room", ParseEntityID("lifehub/statestream/light/living_room/state"))
	assert.Equal(t, "sensor.kitchen_temp", ParseEntityID("lifehub/statestream/sensor/kitchen_temp/state"))
	assert.Equal(t, "", ParseEntityID("lifehub/statestream"))
	assert.Equal(t, "", ParseEntityID(""))
}

func TestTimeOfDayBucket(t *testing.T) {
	cases := map[int]string{
		0:  "night",
		4:  "night",
		5:  "morning",
		11: "morning",
		12: "afternoon",
		16: "afternoon",
		17: "evening",
		21: "evening",
		22: "night",
		23: "night",
	}
	for hour, want := range cases {
		assert.Equal(t, want, TimeOfDayBucket(hour), "hour %d", hour)
	}
}

func TestToday(t *testing.T) {
	assert.Equal(t, "2026-03-10", Today(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)))
}
