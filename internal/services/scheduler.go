package services

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"orgsetup/internal/config"
	"orgsetup/internal/executor"
)

// Submitter queues runs. *executor.Executor satisfies it.
type Submitter interface {
	Submit(req executor.Request) (string, <-chan *executor.Result, error)
}

// Schedule is one cron entry and the run it submits.
type Schedule struct {
	Name    string
	Spec    string
	Request executor.Request
}

// SchedulerService submits configured runs on cron schedules. A firing that
// finds the queue full is skipped and logged; the next firing tries again.
type SchedulerService struct {
	cron    *cron.Cron
	submit  Submitter
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// Specs take an optional seconds field, plus descriptors like @daily.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func NewSchedulerService(submit Submitter) *SchedulerService {
	return &SchedulerService{
		cron:    cron.New(cron.WithParser(cronParser)),
		submit:  submit,
		entries: make(map[string]cron.EntryID),
	}
}

// SchedulesFromConfig turns the schedule section into entries. Empty
// expressions are left out.
func SchedulesFromConfig(cfg config.ScheduleConfig, run config.RunConfig) []Schedule {
	var schedules []Schedule
	if cfg.EmailDeliverability != "" {
		schedules = append(schedules, Schedule{
			Name: "email_deliverability",
			Spec: cfg.EmailDeliverability,
			Request: executor.Request{
				Kind:        executor.KindEmailDeliverability,
				Trigger:     "schedule",
				Screenshots: run.Screenshots,
			},
		})
	}
	if cfg.StateCountry != "" {
		schedules = append(schedules, Schedule{
			Name: "state_country",
			Spec: cfg.StateCountry,
			Request: executor.Request{
				Kind:        executor.KindStateCountry,
				Trigger:     "schedule",
				CountryCSV:  cfg.CountryCSV,
				StateCSV:    cfg.StateCSV,
				Screenshots: run.Screenshots,
			},
		})
	}
	return schedules
}

// Add registers sched, replacing any entry with the same name. An invalid
// request fails here rather than on every firing.
func (s *SchedulerService) Add(sched Schedule) error {
	if err := sched.Request.Validate(); err != nil {
		return fmt.Errorf("schedule %s: %w", sched.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[sched.Name]; ok {
		s.cron.Remove(id)
		delete(s.entries, sched.Name)
	}

	entryID, err := s.cron.AddFunc(sched.Spec, func() { s.fire(sched) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", sched.Name, err)
	}
	s.entries[sched.Name] = entryID
	log.Info().Str("schedule", sched.Name).Str("spec", sched.Spec).Int("entry", int(entryID)).Msg("⏰ Added schedule")
	return nil
}

func (s *SchedulerService) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		log.Info().Str("schedule", name).Msg("🗑️ Removed schedule")
	}
}

// Names lists the registered schedules.
func (s *SchedulerService) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *SchedulerService) fire(sched Schedule) {
	runID, _, err := s.submit.Submit(sched.Request)
	if err != nil {
		log.Warn().Err(err).Str("schedule", sched.Name).Msg("⚠️ Scheduled run not submitted")
		return
	}
	log.Info().Str("schedule", sched.Name).Str("run_id", runID).Msg("⏰ Scheduled run submitted")
}

func (s *SchedulerService) Start() {
	s.cron.Start()
	log.Info().Int("schedules", len(s.Names())).Msg("✅ Scheduler service started")
}

// Stop waits for any firing in progress. Runs already submitted keep going.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("🛑 Scheduler service stopped")
}
