package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"practice-controlplane/pkg/db/option"
	"practice-controlplane/pkg/db/pagination"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/services/apikey"
	"practice-controlplane/services/license"
	"practice-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockTenantRepository struct {
	findFn    func(ctx context.Context, query *Tenant, opts ...option.QueryOption) ([]*Tenant, error)
	findOneFn func(ctx context.Context, query *Tenant, opts ...option.QueryOption) (*Tenant, error)
}

func (m *mockTenantRepository) WithTrx(tx *gorm.DB) repository.Repository[Tenant] {
	return m
}

func (m *mockTenantRepository) Find(ctx context.Context, query *Tenant, opts ...option.QueryOption) ([]*Tenant, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *mockTenantRepository) FindOne(ctx context.Context, query *Tenant, opts ...option.QueryOption) (*Tenant, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *mockTenantRepository) Create(context.Context, *Tenant) error         { return nil }
func (m *mockTenantRepository) Update(context.Context, string, any) error     { return nil }
func (m *mockTenantRepository) BatchCreate(context.Context, []*Tenant) error  { return nil }
func (m *mockTenantRepository) BatchUpdate(context.Context, []*Tenant) error  { return nil }
func (m *mockTenantRepository) Count(context.Context, *Tenant) (int64, error) { return 0, nil }

type fakeSequence struct{ n int }

func (f *fakeSequence) NextTenantCode(ctx context.Context) (string, error) {
	f.n++
	return "PR000" + string(rune('0'+f.n)), nil
}

func (f *fakeSequence) NextAppointmentCode(ctx context.Context, tenantID string) (string, error) {
	return "APT-000000-001AA", nil
}

type fakeSeats struct {
	calls []license.ReconcileRequest
}

func (f *fakeSeats) Reconcile(ctx context.Context, req license.ReconcileRequest) (*license.ReconcileResult, error) {
	f.calls = append(f.calls, req)
	return &license.ReconcileResult{TenantID: req.TenantID, After: req.Seats}, nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeSeats) {
	t.Helper()

	db := testutil.NewTestDB(t, &Tenant{}, &apikey.APIKey{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	seats := &fakeSeats{}
	svc := NewService(ServiceParams{
		DB:    db,
		Node:  node,
		Seq:   &fakeSequence{},
		Keys:  apikey.NewService(apikey.ServiceParams{DB: db, Node: node}),
		Seats: seats,
	})
	return svc, db, seats
}

func TestListTenantsSuccess(t *testing.T) {
	now := time.Now()
	repo := &mockTenantRepository{}
	repo.findFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) ([]*Tenant, error) {
		return []*Tenant{
			{ID: "tenant-1", Name: "Tenant One", Slug: "tenant-one", CreatedAt: now, UpdatedAt: now},
			{ID: "tenant-2", Name: "Tenant Two", Slug: "tenant-two", CreatedAt: now, UpdatedAt: now},
		}, nil
	}
	svc := &Service{repo: repo}

	resp, err := svc.ListTenants(context.Background(), pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, resp.Tenants, 2)
	require.False(t, resp.HasMore)
	require.Equal(t, "tenant-one", resp.Tenants[0].Slug)
}

func TestListTenantsRepositoryError(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) ([]*Tenant, error) {
		return nil, errors.New("boom")
	}
	svc := &Service{repo: repo}

	_, err := svc.ListTenants(context.Background(), pagination.Pagination{})
	require.Error(t, err)
	require.True(t, errutil.Is(err, errutil.StatusInternal))
}

func TestListTenantsPaginates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Alpha Clinic", "Beta Clinic", "Gamma Clinic"} {
		_, err := svc.CreateTenant(ctx, CreateTenantRequest{Name: name})
		require.NoError(t, err)
	}

	first, err := svc.ListTenants(ctx, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Tenants, 2)
	require.True(t, first.HasMore)

	second, err := svc.ListTenants(ctx, pagination.Pagination{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Tenants, 1)
	require.False(t, second.HasMore)
}

func TestListTenantsOrdersIDsNumerically(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"100", "9", "11", "10"} {
		require.NoError(t, db.Create(&Tenant{ID: id, Name: "Clinic " + id, Slug: "clinic-" + id}).Error)
	}

	var got []string
	page := pagination.Pagination{Limit: 1}
	for {
		res, err := svc.ListTenants(ctx, page)
		require.NoError(t, err)
		for _, tn := range res.Tenants {
			got = append(got, tn.ID)
		}
		if !res.HasMore {
			break
		}
		page.Cursor = res.NextCursor
	}

	require.Equal(t, []string{"9", "10", "11", "100"}, got)
}

func TestCreateTenantSlugExists(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) (*Tenant, error) {
		return &Tenant{ID: "existing"}, nil
	}
	svc := &Service{repo: repo}

	_, err := svc.CreateTenant(context.Background(), CreateTenantRequest{Name: "Tenant", Slug: "tenant"})
	require.Error(t, err)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestGetTenantNotFound(t *testing.T) {
	repo := &mockTenantRepository{}
	repo.findOneFn = func(ctx context.Context, _ *Tenant, _ ...option.QueryOption) (*Tenant, error) {
		return nil, nil
	}
	svc := &Service{repo: repo}

	_, err := svc.GetTenant(context.Background(), "unknown")
	require.Error(t, err)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestCreateTenantSuccess(t *testing.T) {
	svc, db, _ := newTestService(t)

	resp, err := svc.CreateTenant(context.Background(), CreateTenantRequest{
		Name:        "Harbour Physio",
		CountryCode: "AU",
		Timezone:    "Australia/Sydney",
		Type:        Group,
	})
	require.NoError(t, err)
	require.Equal(t, "harbour-physio", resp.Tenant.Slug)
	require.Equal(t, Pending, resp.Tenant.Status)
	require.Equal(t, "PR0001", resp.Tenant.Code)
	require.NotEmpty(t, resp.APIKey.Secret)

	var count int64
	require.NoError(t, db.Model(&Tenant{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&apikey.APIKey{}).Where("tenant_id = ?", resp.Tenant.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestActivateAppliesSeats(t *testing.T) {
	svc, _, seats := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTenant(ctx, CreateTenantRequest{Name: "Harbour Physio"})
	require.NoError(t, err)

	tenant, err := svc.Activate(ctx, Activation{
		TenantID:             created.Tenant.ID,
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_123",
		Seats:                4,
	})
	require.NoError(t, err)
	require.Equal(t, Active, tenant.Status)
	require.Equal(t, 4, tenant.Seats)
	require.Len(t, seats.calls, 1)
	require.Equal(t, 4, seats.calls[0].Seats)
	require.Nil(t, seats.calls[0].SubscriptionItemID)

	found, err := svc.FindByCustomer(ctx, "cus_123")
	require.NoError(t, err)
	require.Equal(t, created.Tenant.ID, found.ID)
	require.Equal(t, 4, found.Seats)
	require.Equal(t, Active, found.Status)
}

func TestUpdateSeatsRejectsNegative(t *testing.T) {
	svc, _, seats := newTestService(t)

	_, err := svc.UpdateSeats(context.Background(), "t1", -2)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
	require.Empty(t, seats.calls)
}

func TestSuspend(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTenant(ctx, CreateTenantRequest{Name: "Harbour Physio"})
	require.NoError(t, err)

	tenant, err := svc.Suspend(ctx, created.Tenant.ID)
	require.NoError(t, err)
	require.Equal(t, Suspended, tenant.Status)

	stored, err := svc.GetTenant(ctx, created.Tenant.ID)
	require.NoError(t, err)
	require.Equal(t, Suspended, stored.Status)
}
