package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartReaper schedules m.Reap and m.Maintain every interval. The returned
// scheduler must be shut down by the caller.
func StartReaper(m *Manager, interval, idle time.Duration, logger *slog.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := m.Reap(idle); n > 0 {
				logger.Info("reaped idle rooms", "count", n, "live", m.Len())
			}
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			m.Maintain(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("scheduling reaper: %w", err)
	}

	sched.Start()
	return sched, nil
}
