package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/arovi-health/arovi/internal/store"
)

// Scheduler sweeps subscriptions and fires briefing runs that are due. A
// redis lock keeps multiple server replicas from running the same
// subscription twice.
type Scheduler struct {
	Store    *store.Store
	Rdb      *redis.Client
	Handler  *BriefingsHandler
	Stop     chan struct{}
	Interval time.Duration
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	if s.Interval <= 0 {
		s.Interval = time.Hour
	}
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(s.Interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	subs, err := s.Store.ListAllSubscriptions(ctx)
	if err != nil {
		s.Logger.Printf("listing subscriptions: %v", err)
		return
	}
	for _, sub := range subs {
		last, _ := s.Store.LatestRunTime(ctx, sub.ID)
		if !isDue(sub.ScheduleCron, last) {
			continue
		}

		if s.Rdb != nil {
			lockKey := "sched:lock:" + sub.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		runID, err := s.Store.CreateRun(ctx, sub.ID, store.RunStatusRunning)
		if err != nil {
			s.Logger.Printf("subscription %s: creating run: %v", sub.ID, err)
			continue
		}
		s.Logger.Printf("subscription %s due, run %s started", sub.ID, runID)

		go func(sub store.Subscription, runID string) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
			s.Handler.execute(runID, sub, "")
		}(sub, runID)
	}
}

// isDue determines whether a subscription with cronSpec should run now, given
// its last run time. Supports @daily, @hourly, and 5-field cron expressions;
// invalid expressions fall back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
