package utils

import "time"

// StreamMaxLen caps the Redis stream buffering one entity's state updates.
const StreamMaxLen int64 = 100

// DebounceWindow is how long entity updates are buffered before the newest
// one is evaluated.
const DebounceWindow = 2000 * time.Millisecond
