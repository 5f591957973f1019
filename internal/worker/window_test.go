package worker

import (
	"testing"
	"time"

	"github.com/karlennis/fiscan/internal/models"
)

func TestComputeWindow_TargetDate(t *testing.T) {
	target := time.Date(2026, 7, 15, 13, 45, 0, 0, time.UTC)
	start, end := computeWindow(models.ScanJobSchedule{Type: models.ScheduleDaily}, &target, time.Now())

	wantStart := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 7, 16, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("computeWindow = [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}
}

func TestComputeWindow_RecurringDefaultLookback(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	start, end := computeWindow(models.ScanJobSchedule{Type: models.ScheduleDaily}, nil, now)

	wantStart := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	wantEnd := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC).Add(-time.Millisecond)
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestComputeWindow_RecurringCustomLookback(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	start, _ := computeWindow(models.ScanJobSchedule{Type: models.ScheduleWeekly, LookbackDays: 7}, nil, now)

	wantStart := time.Date(2026, 7, 24, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
}

func TestEligibleToRun_NeverRun(t *testing.T) {
	if !eligibleToRun(models.ScanJobSchedule{Type: models.ScheduleDaily}, time.Time{}, time.Now()) {
		t.Error("a job with zero LastSuccessAt must always be eligible")
	}
}

func TestEligibleToRun_DailySameDayBlocked(t *testing.T) {
	now := time.Date(2026, 7, 31, 18, 0, 0, 0, time.UTC)
	last := time.Date(2026, 7, 31, 6, 0, 0, 0, time.UTC)
	if eligibleToRun(models.ScanJobSchedule{Type: models.ScheduleDaily}, last, now) {
		t.Error("daily job that already succeeded today must not be eligible again")
	}
}

func TestEligibleToRun_DailyNextDayAllowed(t *testing.T) {
	now := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	last := time.Date(2026, 7, 31, 6, 0, 0, 0, time.UTC)
	if !eligibleToRun(models.ScanJobSchedule{Type: models.ScheduleDaily}, last, now) {
		t.Error("daily job should be eligible on the next UTC day")
	}
}

func TestEligibleToRun_WeeklyRequiresSevenDays(t *testing.T) {
	last := time.Date(2026, 7, 24, 0, 0, 0, 0, time.UTC)
	sched := models.ScanJobSchedule{Type: models.ScheduleWeekly}

	justUnder := last.Add(7*24*time.Hour - time.Minute)
	if eligibleToRun(sched, last, justUnder) {
		t.Error("weekly job must not be eligible before 7 full days have elapsed")
	}

	atOrOver := last.Add(7 * 24 * time.Hour)
	if !eligibleToRun(sched, last, atOrOver) {
		t.Error("weekly job must be eligible once 7 full days have elapsed")
	}
}

func TestEligibleToRun_MonthlyRequiresThirtyDays(t *testing.T) {
	last := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sched := models.ScanJobSchedule{Type: models.ScheduleMonthly}

	if eligibleToRun(sched, last, last.Add(29*24*time.Hour)) {
		t.Error("monthly job must not be eligible before 30 days")
	}
	if !eligibleToRun(sched, last, last.Add(30*24*time.Hour)) {
		t.Error("monthly job must be eligible at 30 days")
	}
}
