package scheduler

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"lifehub/internal/db"
	"lifehub/internal/models"
	"lifehub/internal/taskqueue"
)

// Scheduler drives the time-based triggers: one cron entry per enabled
// schedule rule, plus the minutely escalation sweep. It only enqueues
// evaluations; the engine itself never owns a timer.
type Scheduler struct {
	cron      *cron.Cron
	db        *db.DB
	jobMap    map[string]cron.EntryID // rule ID -> cron entry
	jobMapMux sync.RWMutex
}

// NewScheduler creates a scheduler
func NewScheduler(dbConn *db.DB) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		db:     dbConn,
		jobMap: make(map[string]cron.EntryID),
	}
}

// Start starts the cron loop and registers the escalation sweep.
func (s *Scheduler) Start() {
	s.cron.AddFunc("* * * * *", func() {
		if err := taskqueue.EnqueueEscalationSweep(); err != nil {
			log.Printf("SCHEDULER: Failed to enqueue escalation sweep: %v", err)
		}
	})
	s.cron.Start()
	log.Println("SCHEDULER: Cron scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("SCHEDULER: Cron scheduler stopped")
}

// LoadScheduleRules registers a cron job for every enabled schedule-trigger
// rule. Called during initialization and again whenever rules change.
func (s *Scheduler) LoadScheduleRules() error {
	scheduleRules, err := s.db.ScheduleRules(context.Background())
	if err != nil {
		log.Printf("SCHEDULER: Failed to load schedule rules: %v", err)
		return err
	}

	log.Printf("SCHEDULER: Loading %d schedule rules", len(scheduleRules))
	for _, rule := range scheduleRules {
		spec, _ := rule.TriggerConfig["cron"].(string)
		if spec == "" {
			log.Printf("SCHEDULER: Rule %s has no cron expression, skipping", rule.ID)
			continue
		}

		ruleID := rule.ID
		userID := rule.OwnerID
		entryID, err := s.cron.AddFunc(spec, func() {
			log.Printf("SCHEDULER: Schedule tick for rule %s", ruleID)
			err := taskqueue.EnqueueTrigger(userID, models.TriggerSchedule, map[string]any{
				"rule_id": ruleID,
				"cron":    spec,
			})
			if err != nil {
				log.Printf("SCHEDULER: Failed to enqueue evaluation for rule %s: %v", ruleID, err)
			}
		})
		if err != nil {
			log.Printf("SCHEDULER: Failed to schedule rule %s with cron '%s': %v", ruleID, spec, err)
			continue
		}

		s.jobMapMux.Lock()
		s.jobMap[ruleID] = entryID
		s.jobMapMux.Unlock()
		log.Printf("SCHEDULER: Scheduled rule %s with cron '%s' (entry ID: %d)", ruleID, spec, entryID)
	}
	return nil
}

// ReloadScheduleRules drops every registered schedule entry and reloads
// from the database. Called after rule create/update/delete.
func (s *Scheduler) ReloadScheduleRules() error {
	s.jobMapMux.Lock()
	for ruleID, entryID := range s.jobMap {
		s.cron.Remove(entryID)
		log.Printf("SCHEDULER: Removed schedule for rule %s (entry ID: %d)", ruleID, entryID)
	}
	s.jobMap = make(map[string]cron.EntryID)
	s.jobMapMux.Unlock()

	return s.LoadScheduleRules()
}

// ScheduledJobCount returns the number of registered schedule entries.
func (s *Scheduler) ScheduledJobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}
