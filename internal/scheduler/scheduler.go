// Package scheduler implements C9: a wall-clock driver that fires at a job's
// configured time and enqueues a run, plus CUSTOM schedules driven by
// robfig/cron.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
)

// Scheduler polls ScanJobStore on a fixed interval and enqueues jobs whose
// time_of_day has arrived and are eligible per their schedule type
//. CUSTOM schedules are additionally checked against a
// parsed robfig/cron expression.
type Scheduler struct {
	jobs interfaces.ScanJobStore
	queue interfaces.QueueStore
	cron cron.Parser
	logger *common.Logger
	config common.SchedulerConfig

	cancel context.CancelFunc
}

// New creates a Scheduler.
func New(jobs interfaces.ScanJobStore, queue interfaces.QueueStore, config common.SchedulerConfig, logger *common.Logger) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		queue: queue,
		cron: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger: logger,
		config: config,
	}
}

// Start launches the poll loop. A no-op if config.Enabled is false
// (SCAN_SCHEDULER_ENABLED) — this disables C9 without touching
// C10, which keeps draining whatever the queue already holds.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("scheduler disabled, worker will only drain manually-enqueued runs")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	interval := s.config.GetPollInterval()
	ticker := time.NewTicker(interval)

	backoff := time.Duration(0)
	const backoffMax = 30 * time.Second

	tick := func() {
		if s.scanOnce(ctx) {
			backoff = 0
			return
		}
		if backoff == 0 {
			backoff = 2 * time.Second
		} else {
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
		s.logger.Warn().Dur("backoff", backoff).Msg("scheduler: store error, backing off")
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}

	go func() {
		defer ticker.Stop()
		tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	s.logger.Info().Dur("interval", interval).Msg("scheduler started")
}

// Stop cancels the poll loop.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// scanOnce lists all jobs and enqueues the ones due now. Returns false on a
// store-level error so Start can back off.
func (s *Scheduler) scanOnce(ctx context.Context) bool {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: failed to list jobs")
		return false
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if !s.due(job, now) {
			continue
		}
		if err := s.enqueue(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("scheduler: failed to enqueue job")
		}
	}
	return true
}

// due reports whether job should fire at now: its status must
// be enqueue-eligible, the time_of_day (or cron expression for CUSTOM) must
// match, and the schedule-type eligibility window must have elapsed.
func (s *Scheduler) due(job *models.ScanJob, now time.Time) bool {
	switch job.Status {
	case models.ScanJobStatusPaused, models.ScanJobStatusStopped, models.ScanJobStatusCancelling:
		return false
	}

	if !eligibleToRun(job.Schedule, job.Statistics.LastSuccessAt, now) {
		return false
	}

	if job.Schedule.Type == models.ScheduleCustom && job.Schedule.CronExpr != "" {
		sched, err := s.cron.Parse(job.Schedule.CronExpr)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Str("cron", job.Schedule.CronExpr).Msg("invalid cron expression")
			return false
		}
		// Fire if the most recent scheduled activation falls within the last
		// poll interval, so a tick that lands slightly after the mark still fires.
		prev := sched.Next(now.Add(-s.config.GetPollInterval()))
		return !prev.After(now)
	}

	return matchesTimeOfDay(job.Schedule.TimeOfDay, now, s.config.GetPollInterval())
}

// matchesTimeOfDay reports whether now falls within one poll interval after
// the job's configured "HH:MM" UTC time.
func matchesTimeOfDay(hhmm string, now time.Time, tolerance time.Duration) bool {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return false
	}
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	return !now.Before(scheduled) && now.Sub(scheduled) < tolerance
}

func (s *Scheduler) enqueue(ctx context.Context, job *models.ScanJob) error {
	entry := &models.QueueEntry{
		JobKey: "scan:" + job.JobID,
		Payload: models.QueueEntryPayload{JobID: job.JobID},
		Status: models.QueueStatusPending,
		MaxAttempts: 3,
		CreatedAt: time.Now(),
	}
	saved, err := s.queue.Enqueue(ctx, entry)
	if err != nil {
		return err
	}
	if saved.Status == models.QueueStatusPending && saved.Attempts == 0 {
		s.logger.Info().Str("job_id", job.JobID).Msg("scheduler enqueued scan run")
	}
	return nil
}

// computeWindow and eligibleToRun live in internal/worker; duplicated minimal
// eligibility check here so the scheduler never imports the worker package
// (avoids a scheduler→worker→scheduler dependency cycle, since worker
// schedules nothing itself).
func eligibleToRun(sched models.ScanJobSchedule, lastSuccessAt time.Time, now time.Time) bool {
	if lastSuccessAt.IsZero() {
		return true
	}
	now = now.UTC()
	last := lastSuccessAt.UTC()

	switch sched.Type {
	case models.ScheduleWeekly:
		return now.Sub(last) >= 7*24*time.Hour
	case models.ScheduleMonthly:
		return now.Sub(last) >= 30*24*time.Hour
	default:
		ny, nm, nd := now.Date()
		ly, lm, ld := last.Date()
		return !(ny == ly && nm == lm && nd == ld)
	}
}
