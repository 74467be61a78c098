package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
)

// Module provides the maintenance scheduler.
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Provide(NewTasks),
	fx.Invoke(registerTasks),
)

func registerTasks(lc fx.Lifecycle, s *Scheduler, tasks *Tasks) error {
	if err := s.AddIntervalTask("group-usage-refresh", 5*time.Minute, tasks.RefreshGroupUsage); err != nil {
		return err
	}
	if err := s.AddIntervalTask("ordering-audit", 30*time.Minute, tasks.AuditOrderings); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
	return nil
}
