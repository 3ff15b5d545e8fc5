package task

import (
	"context"
	"time"

	"practice-controlplane/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Scheduler struct {
	service      *Service
	hour, minute int
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	return &Scheduler{service: svc, hour: cfg.Scheduler.Hour, minute: cfg.Scheduler.Minute}
}

// StartScheduler runs the daily loop for the lifetime of the fx app.
func StartScheduler(lc fx.Lifecycle, cfg *config.Config, s *Scheduler) {
	if cfg.Scheduler.Disabled {
		zap.L().Info("[Scheduler] disabled by config")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started seat reconcile scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, s.hour, s.minute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)

		timer := time.NewTimer(sleepDuration)
		select {
		case <-timer.C:
			s.runDaily(ctx)
		case <-ctx.Done():
			timer.Stop()
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()
	zap.L().Info("[Scheduler] enqueueing daily seat reconcile")

	if err := s.service.EnqueueReconcileAll(ctx); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue reconcile-all", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] enqueued reconcile-all", zap.Duration("duration", time.Since(start)))
}

// nextRunTime returns the next wall-clock occurrence of hour:minute at or after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
