package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lifehub/internal/models"
)

func intPtr(n int) *int { return &n }

func TestCooldownBlocksRecentFire(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fired := now.Add(-10 * time.Minute)
	rule := models.Rule{CooldownMinutes: 30, LastFiredAt: &fired}

	status, blocked := CheckRateLimits(rule, Context{}, now)
	assert.True(t, blocked)
	assert.Equal(t, models.StatusSkippedCooldown, status)

	// exactly at the boundary the cooldown has elapsed
	fired = now.Add(-30 * time.Minute)
	rule.LastFiredAt = &fired
	_, blocked = CheckRateLimits(rule, Context{}, now)
	assert.False(t, blocked)
}

func TestCooldownIgnoredWhenNeverFired(t *testing.T) {
	rule := models.Rule{CooldownMinutes: 30}
	_, blocked := CheckRateLimits(rule, Context{}, time.Now())
	assert.False(t, blocked)
}

func TestDailyCapBlocksOnlyForToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rule := models.Rule{
		MaxFiresPerDay:  intPtr(3),
		TimesFiredToday: 3,
		LastResetDate:   "2026-03-10",
	}

	status, blocked := CheckRateLimits(rule, Context{}, now)
	assert.True(t, blocked)
	assert.Equal(t, models.StatusSkippedDailyCap, status)

	// a counter from yesterday does not count against today
	rule.LastResetDate = "2026-03-09"
	_, blocked = CheckRateLimits(rule, Context{}, now)
	assert.False(t, blocked)

	rule.LastResetDate = "2026-03-10"
	rule.TimesFiredToday = 2
	_, blocked = CheckRateLimits(rule, Context{}, now)
	assert.False(t, blocked)
}

func TestExcludedTimeWindow(t *testing.T) {
	rule := models.Rule{
		ExcludedTimes: []models.TimeRange{{Start: "22:00", End: "06:00"}},
	}

	status, blocked := CheckRateLimits(rule, Context{Hour: 23, Minute: 15}, time.Now())
	assert.True(t, blocked)
	assert.Equal(t, models.StatusSkippedExcludedTime, status)

	_, blocked = CheckRateLimits(rule, Context{Hour: 12, Minute: 0}, time.Now())
	assert.False(t, blocked)
}

func TestExcludedRoom(t *testing.T) {
	rule := models.Rule{ExcludedRooms: []string{"bedroom", "bathroom"}}

	status, blocked := CheckRateLimits(rule, Context{Room: "bedroom"}, time.Now())
	assert.True(t, blocked)
	assert.Equal(t, models.StatusSkippedExcludedRoom, status)

	_, blocked = CheckRateLimits(rule, Context{Room: "office"}, time.Now())
	assert.False(t, blocked)

	// an empty room context never matches an exclusion
	_, blocked = CheckRateLimits(models.Rule{ExcludedRooms: []string{""}}, Context{}, time.Now())
	assert.False(t, blocked)
}

func TestGateOrderCooldownFirst(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	fired := now.Add(-5 * time.Minute)
	rule := models.Rule{
		CooldownMinutes: 30,
		LastFiredAt:     &fired,
		MaxFiresPerDay:  intPtr(1),
		TimesFiredToday: 1,
		LastResetDate:   "2026-03-10",
		ExcludedTimes:   []models.TimeRange{{Start: "22:00", End: "06:00"}},
		ExcludedRooms:   []string{"bedroom"},
	}

	status, blocked := CheckRateLimits(rule, Context{Room: "bedroom", Hour: 23}, now)
	assert.True(t, blocked)
	assert.Equal(t, models.StatusSkippedCooldown, status)
}
