package worker

import (
	"time"

	"github.com/karlennis/fiscan/internal/models"
)

// computeWindow derives the [start, end) scan window for a fresh (non-resumed)
// run: for a manual run with an explicit target date, the whole
// day [D, D+1d); for a recurring run, [now-lookback_days, yesterday 23:59:59.999].
func computeWindow(sched models.ScanJobSchedule, targetDate *time.Time, now time.Time) (time.Time, time.Time) {
	now = now.UTC()

	if targetDate != nil {
		d := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, time.UTC)
		return d, d.AddDate(0, 0, 1)
	}

	lookback := sched.LookbackDays
	if lookback <= 0 {
		lookback = 1
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -lookback)
	end := today.Add(-time.Millisecond) // yesterday 23:59:59.999
	return start, end
}

// eligibleToRun reports whether job is due to run for "today" per its
// schedule type. A zero lastSuccessAt always counts as eligible.
// internal/scheduler keeps its own copy of this check so that it does not
// import this package.
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
	default: // DAILY, CUSTOM
		ny, nm, nd := now.Date()
		ly, lm, ld := last.Date()
		return !(ny == ly && nm == lm && nd == ld)
	}
}
