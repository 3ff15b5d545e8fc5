package tenant

import (
	"context"
	"errors"
	"fmt"

	"practice-controlplane/pkg/db/option"
	"practice-controlplane/pkg/db/pagination"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/pkg/sequence"
	"practice-controlplane/services/apikey"
	"practice-controlplane/services/license"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrSlugTaken      = errors.New("tenant slug already exists")
)

// SeatReconciler applies a tenant-wide seat count to the license pool.
type SeatReconciler interface {
	Reconcile(ctx context.Context, req license.ReconcileRequest) (*license.ReconcileResult, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	seq   sequence.Generator
	keys  *apikey.Service
	seats SeatReconciler
	repo  repository.Repository[Tenant]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Seq   sequence.Generator `optional:"true"`
	Keys  *apikey.Service
	Seats SeatReconciler
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		seq:   p.Seq,
		keys:  p.Keys,
		seats: p.Seats,
		repo:  repository.ProvideStore[Tenant](p.DB),
	}
}

func (s *Service) ListTenants(ctx context.Context, page pagination.Pagination) (*ListTenantsResult, error) {
	zapLog := logger.FromContext(ctx)

	tenants, err := s.repo.Find(ctx, &Tenant{}, option.ApplyPagination(page))
	if err != nil {
		zapLog.Error("failed to list tenants", zap.Error(err))
		return nil, errutil.Internal("failed to list tenants", err)
	}

	tenants, info := pagination.Trim(tenants, page.Size(), func(t *Tenant) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{ID: t.ID})
		return cursor
	})

	return &ListTenantsResult{
		Tenants:    tenants,
		NextCursor: info.NextCursor,
		HasMore:    info.HasMore,
	}, nil
}

// CreateTenant registers a pending practice and issues its first server API key.
func (s *Service) CreateTenant(ctx context.Context, req CreateTenantRequest) (*CreateTenantResult, error) {
	zapLog := logger.FromContext(ctx)

	if req.Name == "" {
		return nil, errutil.BadRequest("name is required", nil)
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}

	exist, err := s.repo.FindOne(ctx, &Tenant{
		Slug: slugName,
	})
	if err != nil {
		zapLog.Error("failed query get tenant by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing tenant", err)
	}

	if exist != nil {
		zapLog.Warn("tenant already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("tenant already exists", ErrSlugTaken)
	}

	var code string
	if s.seq != nil {
		if code, err = s.seq.NextTenantCode(ctx); err != nil {
			zapLog.Error("failed to generate tenant code", zap.Error(err))
			return nil, errutil.Internal("failed to create tenant", err)
		}
	}

	tenantType := req.Type
	if tenantType.String() == "" {
		tenantType = Solo
	}

	tenant := &Tenant{
		ID:          s.node.Generate().String(),
		Code:        code,
		Type:        tenantType,
		Name:        req.Name,
		Slug:        slugName,
		CountryCode: req.CountryCode,
		Timezone:    req.Timezone,
		Status:      Pending,
	}

	var issued *apikey.IssuedKey
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).Create(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}

		issued, err = s.keys.Issue(ctx, tx, tenant.ID, apikey.APIKeyTypeServer, []string{"practice_admin"})
		return err
	}); err != nil {
		zapLog.Error("failed to create tenant transaction", zap.Error(err))
		return nil, errutil.Internal("failed to create tenant", err)
	}

	zapLog.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("slug", slugName))
	return &CreateTenantResult{Tenant: tenant, APIKey: issued}, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	zapLog := logger.FromContext(ctx)

	tenant, err := s.repo.FindOne(ctx, &Tenant{
		ID: tenantID,
	})
	if err != nil {
		zapLog.Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get tenant", err)
	}

	if tenant == nil {
		zapLog.Warn("failed get tenant, tenant not found", zap.String("tenant_id", tenantID))
		return nil, errutil.NotFound("tenant not found", ErrTenantNotFound)
	}

	return tenant, nil
}

// FindByCustomer returns (nil, nil) when no tenant is linked to the billing customer.
func (s *Service) FindByCustomer(ctx context.Context, customerID string) (*Tenant, error) {
	if customerID == "" {
		return nil, nil
	}
	return s.repo.FindOne(ctx, &Tenant{StripeCustomerID: &customerID})
}

// UpdateSeats stores the tenant-wide seat count and reconciles the license pool to it.
func (s *Service) UpdateSeats(ctx context.Context, tenantID string, seats int) (*license.ReconcileResult, error) {
	if seats < 0 {
		return nil, errutil.BadRequest("seats must not be negative", license.ErrNegativeSeats)
	}

	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tenantID, map[string]any{"seats": seats}); err != nil {
		logger.FromContext(ctx).Error("failed to update tenant seats", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to update seats", err)
	}

	return s.seats.Reconcile(ctx, license.ReconcileRequest{TenantID: tenantID, Seats: seats})
}

// Activate links the billing customer, marks the tenant active and applies the purchased seats.
func (s *Service) Activate(ctx context.Context, a Activation) (*Tenant, error) {
	tenant, err := s.GetTenant(ctx, a.TenantID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"status": Active}
	if a.StripeCustomerID != "" {
		updates["stripe_customer_id"] = a.StripeCustomerID
		tenant.StripeCustomerID = &a.StripeCustomerID
	}
	if a.StripeSubscriptionID != "" {
		updates["stripe_subscription_id"] = a.StripeSubscriptionID
		tenant.StripeSubscriptionID = &a.StripeSubscriptionID
	}

	if err := s.repo.Update(ctx, tenant.ID, updates); err != nil {
		logger.FromContext(ctx).Error("failed to activate tenant", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return nil, errutil.Internal("failed to activate tenant", err)
	}
	tenant.Status = Active

	if a.Seats > 0 {
		if _, err := s.UpdateSeats(ctx, tenant.ID, a.Seats); err != nil {
			return nil, err
		}
		tenant.Seats = a.Seats
	}

	logger.FromContext(ctx).Info("tenant activated", zap.String("tenant_id", tenant.ID), zap.Int("seats", a.Seats))
	return tenant, nil
}

// Suspend blocks the tenant. Its licenses stay as they are until seats change.
func (s *Service) Suspend(ctx context.Context, tenantID string) (*Tenant, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tenantID, map[string]any{"status": Suspended}); err != nil {
		logger.FromContext(ctx).Error("failed to suspend tenant", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to suspend tenant", err)
	}

	tenant.Status = Suspended
	return tenant, nil
}
