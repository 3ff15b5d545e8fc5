package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"practice-controlplane/pkg/db/pagination"
	"practice-controlplane/pkg/taskname"
	"practice-controlplane/services/license"
	"practice-controlplane/services/tenant"
	"practice-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type pagedTenants struct {
	pages [][]*tenant.Tenant
}

func (p *pagedTenants) ListTenants(ctx context.Context, page pagination.Pagination) (*tenant.ListTenantsResult, error) {
	idx := 0
	if page.Cursor != "" {
		idx = int(page.Cursor[0] - '0')
	}
	res := &tenant.ListTenantsResult{Tenants: p.pages[idx]}
	if idx+1 < len(p.pages) {
		res.HasMore = true
		res.NextCursor = string(rune('0' + idx + 1))
	}
	return res, nil
}

type recordingSeats struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (r *recordingSeats) Reconcile(ctx context.Context, req license.ReconcileRequest) (*license.ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[req.TenantID] = req.Seats
	if r.fail[req.TenantID] {
		return nil, errors.New("lock timeout")
	}
	res := &license.ReconcileResult{TenantID: req.TenantID, After: req.Seats}
	if req.Seats > 0 {
		res.Created = []*license.License{{ID: "new"}}
	}
	return res, nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{}, nil
}

func newTestService(t *testing.T, lister TenantLister, seats SeatReconciler, enq *fakeEnqueuer) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Task{}, &Job{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	p := Params{DB: db, Node: node, Tenants: lister, Seats: seats}
	if enq != nil {
		p.Enqueuer = enq
	}
	return NewService(p)
}

func TestRunReconcileAll(t *testing.T) {
	lister := &pagedTenants{pages: [][]*tenant.Tenant{
		{
			{ID: "t1", Seats: 3, Status: tenant.Active},
			{ID: "t2", Seats: 0, Status: tenant.Active},
		},
		{
			{ID: "t3", Seats: 5, Status: tenant.Suspended},
			{ID: "t4", Seats: 2, Status: tenant.Archived},
			{ID: "t5", Seats: 1, Status: tenant.Active},
		},
	}}
	seats := &recordingSeats{calls: map[string]int{}, fail: map[string]bool{"t5": true}}
	svc := newTestService(t, lister, seats, nil)

	report, err := svc.RunReconcileAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, report.Tenants)
	require.Equal(t, 2, report.Changed)
	require.Equal(t, 1, report.Failed)

	require.Equal(t, map[string]int{"t1": 3, "t2": 0, "t3": 5, "t5": 1}, seats.calls)

	var failed []Job
	require.NoError(t, svc.db.Where("status = ?", JobFailed).Find(&failed).Error)
	require.Len(t, failed, 1)
	require.Equal(t, "t5", failed[0].TenantID)

	jobs, err := svc.Jobs(context.Background(), SweepTenant, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, JobSuccess, jobs[0].Status)
}

func TestHandleReconcileAllTaskReportsFailures(t *testing.T) {
	lister := &pagedTenants{pages: [][]*tenant.Tenant{{{ID: "t1", Seats: 1}}}}
	seats := &recordingSeats{calls: map[string]int{}, fail: map[string]bool{"t1": true}}
	svc := newTestService(t, lister, seats, nil)

	err := svc.HandleReconcileAllTask(context.Background(), asynq.NewTask(taskname.LicenseSeatsReconcileAll, nil))
	require.Error(t, err)
}

func TestEnqueueReconcileAll(t *testing.T) {
	enq := &fakeEnqueuer{}
	svc := newTestService(t, &pagedTenants{pages: [][]*tenant.Tenant{{}}}, &recordingSeats{calls: map[string]int{}}, enq)

	require.NoError(t, svc.EnqueueReconcileAll(context.Background()))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, taskname.LicenseSeatsReconcileAll, enq.tasks[0].Type())

	var count int64
	require.NoError(t, svc.db.Model(&Job{}).Where("status = ?", JobPending).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEnqueueReconcileAllTwiceSameDay(t *testing.T) {
	enq := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}
	svc := newTestService(t, &pagedTenants{pages: [][]*tenant.Tenant{{}}}, &recordingSeats{calls: map[string]int{}}, enq)

	require.NoError(t, svc.EnqueueReconcileAll(context.Background()))
}

func TestEnqueueReconcileAllWithoutQueue(t *testing.T) {
	svc := newTestService(t, &pagedTenants{pages: [][]*tenant.Tenant{{}}}, &recordingSeats{calls: map[string]int{}}, nil)

	require.Error(t, svc.EnqueueReconcileAll(context.Background()))
}

func TestNextRunTime(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before run time", time.Date(2024, 5, 1, 0, 30, 0, 0, loc), time.Date(2024, 5, 1, 1, 0, 0, 0, loc)},
		{"after run time", time.Date(2024, 5, 1, 2, 0, 0, 0, loc), time.Date(2024, 5, 2, 1, 0, 0, 0, loc)},
		{"exactly at run time", time.Date(2024, 5, 1, 1, 0, 0, 0, loc), time.Date(2024, 5, 1, 1, 0, 0, 0, loc)},
		{"end of month", time.Date(2024, 5, 31, 23, 0, 0, 0, loc), time.Date(2024, 6, 1, 1, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, nextRunTime(tt.now, 1, 0))
		})
	}
}
