package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"practice-controlplane/pkg/db/pagination"
	"practice-controlplane/pkg/logger"
	queue "practice-controlplane/pkg/task"
	"practice-controlplane/pkg/taskname"
	"practice-controlplane/services/license"
	"practice-controlplane/services/provisioning"
	"practice-controlplane/services/tenant"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	sweepPageSize    = 250
	sweepConcurrency = 8
)

type TenantLister interface {
	ListTenants(ctx context.Context, page pagination.Pagination) (*tenant.ListTenantsResult, error)
}

type SeatReconciler interface {
	Reconcile(ctx context.Context, req license.ReconcileRequest) (*license.ReconcileResult, error)
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	enqueuer queue.Enqueuer
	tenants  TenantLister
	seats    SeatReconciler

	now func() time.Time
}

type Params struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Enqueuer queue.Enqueuer `optional:"true"`
	Tenants  TenantLister
	Seats    SeatReconciler
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		enqueuer: p.Enqueuer,
		tenants:  p.Tenants,
		seats:    p.Seats,
		now:      time.Now,
	}
}

// EnqueueReconcileAll queues the sweep once per day. A second call on the same day is a no-op.
func (s *Service) EnqueueReconcileAll(ctx context.Context) error {
	if s.enqueuer == nil {
		return errors.New("task enqueuer is not configured")
	}

	day := s.now().UTC().Format("2006-01-02")
	_, err := s.enqueuer.Enqueue(ctx, provisioning.NewReconcileAllTask(),
		asynq.TaskID(fmt.Sprintf("%s:%s", ReconcileAll, day)))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.FromContext(ctx).Info("reconcile-all already queued", zap.String("day", day))
		return nil
	}
	if err != nil {
		return err
	}

	job := &Job{
		ID:       s.node.Generate().String(),
		TaskID:   ReconcileAll,
		TenantID: SweepTenant,
		Status:   JobPending,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		logger.FromContext(ctx).Warn("failed to record reconcile-all job", zap.Error(err))
	}

	logger.FromContext(ctx).Info("enqueued reconcile-all", zap.String("day", day), zap.String("job_id", job.ID))
	return nil
}

// HandleReconcileAllTask is the asynq entrypoint for the sweep.
func (s *Service) HandleReconcileAllTask(ctx context.Context, t *asynq.Task) error {
	report, err := s.RunReconcileAll(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("reconcile-all: %d of %d tenants failed", report.Failed, report.Tenants)
	}
	return nil
}

// RunReconcileAll re-applies every tenant's stored seat count to its tenant-wide license pool.
// Archived tenants are skipped. Tenant failures are recorded per job and do not stop the sweep.
func (s *Service) RunReconcileAll(ctx context.Context) (*SweepReport, error) {
	log := logger.FromContext(ctx)
	start := s.now()

	sweep := s.startJob(ctx, SweepTenant)

	report := &SweepReport{}
	var mu sync.Mutex

	page := pagination.Pagination{Limit: sweepPageSize}
	for {
		res, err := s.tenants.ListTenants(ctx, page)
		if err != nil {
			s.finishJob(ctx, sweep, err, nil)
			return nil, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(sweepConcurrency)
		for _, t := range res.Tenants {
			if t.Status == tenant.Archived {
				continue
			}
			t := t
			g.Go(func() error {
				changed, err := s.reconcileTenant(gctx, t)

				mu.Lock()
				defer mu.Unlock()
				report.Tenants++
				if err != nil {
					report.Failed++
				} else if changed {
					report.Changed++
				}
				return nil
			})
		}
		_ = g.Wait()

		if !res.HasMore || res.NextCursor == "" {
			break
		}
		page.Cursor = res.NextCursor
	}

	s.finishJob(ctx, sweep, nil, report)
	log.Info("reconcile-all finished",
		zap.Int("tenants", report.Tenants),
		zap.Int("changed", report.Changed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return report, nil
}

func (s *Service) reconcileTenant(ctx context.Context, t *tenant.Tenant) (bool, error) {
	job := s.startJob(ctx, t.ID)

	res, err := s.seats.Reconcile(ctx, license.ReconcileRequest{TenantID: t.ID, Seats: t.Seats})
	if err != nil {
		logger.FromContext(ctx).Error("failed to reconcile tenant seats", zap.String("tenant_id", t.ID), zap.Error(err))
		s.finishJob(ctx, job, err, nil)
		return false, err
	}

	s.finishJob(ctx, job, nil, map[string]int{
		"seats":   t.Seats,
		"created": len(res.Created),
		"revoked": len(res.Revoked),
	})
	return res.Changed(), nil
}

func (s *Service) startJob(ctx context.Context, tenantID string) *Job {
	now := s.now()
	job := &Job{
		ID:        s.node.Generate().String(),
		TaskID:    ReconcileAll,
		TenantID:  tenantID,
		Status:    JobRunning,
		StartedAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		logger.FromContext(ctx).Warn("failed to record job", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return job
}

func (s *Service) finishJob(ctx context.Context, job *Job, runErr error, metadata any) {
	updates := map[string]any{
		"status":       JobSuccess,
		"completed_at": s.now(),
	}
	if runErr != nil {
		updates["status"] = JobFailed
		updates["error_msg"] = runErr.Error()
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			updates["metadata"] = b
		}
	}

	if err := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		logger.FromContext(ctx).Warn("failed to update job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Jobs lists the most recent executions, newest first.
func (s *Service) Jobs(ctx context.Context, tenantID string, limit int) ([]*Job, error) {
	q := s.db.WithContext(ctx).Model(&Job{}).Order("created_at DESC").Limit(limit)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}

	var jobs []*Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func RegisterHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.LicenseSeatsReconcileAll, s.HandleReconcileAllTask)
}
