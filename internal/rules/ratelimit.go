package rules

import (
	"time"

	"lifehub/internal/models"
)

// CheckRateLimits runs the three eligibility gates in order: cooldown, daily
// cap, exclusion windows. It returns the skip status and true when the rule
// is blocked from firing. None of the gates writes anything; the daily
// counter reset happens at the point of a successful fire.
func CheckRateLimits(rule models.Rule, ectx Context, now time.Time) (string, bool) {
	if rule.LastFiredAt != nil && rule.CooldownMinutes > 0 {
		cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
		if now.Sub(*rule.LastFiredAt) < cooldown {
			return models.StatusSkippedCooldown, true
		}
	}

	// A stale last_reset_date means the counter belongs to an earlier day
	// and the cap is treated as not yet hit.
	if rule.MaxFiresPerDay != nil && rule.LastResetDate == today(now) &&
		rule.TimesFiredToday >= *rule.MaxFiresPerDay {
		return models.StatusSkippedDailyCap, true
	}

	minutes := ectx.MinutesSinceMidnight()
	for _, r := range rule.ExcludedTimes {
		if inTimeRange(minutes, r) {
			return models.StatusSkippedExcludedTime, true
		}
	}
	for _, room := range rule.ExcludedRooms {
		if room != "" && room == ectx.Room {
			return models.StatusSkippedExcludedRoom, true
		}
	}

	return "", false
}

// today formats the calendar day the daily cap counts against.
func today(now time.Time) string {
	return now.Format("2006-01-02")
}
