package rules

// Context is the snapshot of ambient state one evaluation call runs against.
// Every field is supplied by the caller; the engine never derives ambient
// state on its own.
type Context struct {
	Room         string         `json:"room,omitempty"`
	Activity     string         `json:"activity,omitempty"`
	IdleMinutes  int            `json:"idle_minutes"`
	TimeOfDay    string         `json:"time_of_day,omitempty"` // morning/afternoon/evening/night
	DayOfWeek    int            `json:"day_of_week"`           // 0=Sunday .. 6=Saturday
	Hour         int            `json:"hour"`
	Minute       int            `json:"minute"`
	EntityStates map[string]any `json:"entity_states,omitempty"`
	ActiveTaskID string         `json:"active_task_id,omitempty"`
}

// MinutesSinceMidnight is the wall-clock instant used by quiet_hours
// conditions and exclusion windows.
func (c Context) MinutesSinceMidnight() int {
	return c.Hour*60 + c.Minute
}
