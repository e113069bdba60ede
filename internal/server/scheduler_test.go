package server

import (
	"testing"
	"time"
)

func TestIsDueDaily(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatal("never-run subscription must be due")
	}
	recent := time.Now().Add(-time.Hour)
	if isDue("@daily", &recent) {
		t.Fatal("ran an hour ago, must not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatal("ran 25h ago, must be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-30 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatal("ran 30m ago, must not be due")
	}
	old := time.Now().Add(-61 * time.Minute)
	if !isDue("@hourly", &old) {
		t.Fatal("ran 61m ago, must be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// every day at 06:00; a run from two days ago is overdue
	old := time.Now().Add(-48 * time.Hour)
	if !isDue("0 6 * * *", &old) {
		t.Fatal("cron schedule from two days ago must be due")
	}
	// just ran within the current window
	now := time.Now()
	if isDue("0 6 * * *", &now) {
		t.Fatal("cron schedule that just ran must not be due")
	}
}

func TestIsDueInvalidCronFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("not a cron", &recent) {
		t.Fatal("invalid cron must fall back to daily cadence")
	}
	if !isDue("not a cron", nil) {
		t.Fatal("invalid cron with no prior run must be due")
	}
}
