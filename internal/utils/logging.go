package utils

import "log"

// InitLogging initializes logging
func InitLogging(level string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = level // level-based filtering lives in the process manager for now
}
