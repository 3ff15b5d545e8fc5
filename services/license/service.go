package license

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"practice-controlplane/pkg/db/option"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/events"
	"practice-controlplane/pkg/lock"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/metrics"
	"practice-controlplane/pkg/rediskey"
	"practice-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	locker    lock.Locker
	publisher events.Publisher
	metrics   *metrics.Collector
	repo      repository.Repository[License]

	keygen func() string
	now    func() time.Time
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Locker    lock.Locker
	Publisher events.Publisher   `optional:"true"`
	Metrics   *metrics.Collector `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Service{
		db:        p.DB,
		node:      p.Node,
		locker:    p.Locker,
		publisher: publisher,
		metrics:   p.Metrics,
		repo:      repository.ProvideStore[License](p.DB),
		keygen:    GenerateKey,
		now:       time.Now,
	}
}

// Reconcile makes the number of non-revoked licenses in the scope equal req.Seats.
// Surplus licenses are revoked available-first, oldest-first. Calls for the same scope are serialized.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	zapLog := logger.FromContext(ctx).With(
		zap.String("tenant_id", req.TenantID),
		zap.String("subscription_item_id", deref(req.SubscriptionItemID)),
		zap.Int("seats", req.Seats),
	)

	if req.TenantID == "" {
		return nil, errutil.BadRequest("tenant id is required", ErrMissingTenant)
	}

	if req.Seats < 0 {
		return nil, errutil.BadRequest("seats must not be negative", ErrNegativeSeats)
	}

	release, err := s.locker.Acquire(ctx, rediskey.BuildSeatLockKey(req.TenantID, deref(req.SubscriptionItemID)))
	if err != nil {
		zapLog.Error("failed to acquire seat lock", zap.Error(err))
		return nil, errutil.Timeout("failed to acquire seat lock", err)
	}
	defer release()

	start := time.Now()
	var result *ReconcileResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.reconcile(ctx, tx, req)
		return err
	})
	if err != nil {
		s.metrics.ObserveReconcile(0, 0, time.Since(start), err)
		zapLog.Error("failed to reconcile seats", zap.Error(err))
		return nil, errutil.Internal("failed to reconcile seats", err)
	}
	s.metrics.ObserveReconcile(len(result.Created), len(result.Revoked), time.Since(start), nil)

	zapLog.Info("seats reconciled",
		zap.Int("before", result.Before),
		zap.Int("after", result.After),
		zap.Int("created", len(result.Created)),
		zap.Int("revoked", len(result.Revoked)),
		zap.Strings("detached_practitioner_ids", result.DetachedPractitionerIDs),
	)

	if result.Changed() {
		s.publish(ctx, result)
	}

	return result, nil
}

func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, req ReconcileRequest) (*ReconcileResult, error) {
	repoTx := s.repo.WithTrx(tx)

	active, err := repoTx.Find(ctx, &License{TenantID: req.TenantID},
		scopeOption(req.SubscriptionItemID),
		option.ApplyOperator(option.Condition{
			Field:    "status",
			Operator: option.NEQ,
			Value:    StatusRevoked,
		}),
		option.WithLockingUpdate(),
	)
	if err != nil {
		return nil, fmt.Errorf("load licenses: %w", err)
	}

	result := &ReconcileResult{
		TenantID:                req.TenantID,
		SubscriptionItemID:      req.SubscriptionItemID,
		Before:                  len(active),
		After:                   len(active),
		Created:                 []*License{},
		Revoked:                 []*License{},
		DetachedPractitionerIDs: []string{},
	}

	switch current := len(active); {
	case req.Seats > current:
		created := make([]*License, 0, req.Seats-current)
		for i := 0; i < req.Seats-current; i++ {
			created = append(created, &License{
				ID:                 s.node.Generate().String(),
				TenantID:           req.TenantID,
				SubscriptionItemID: req.SubscriptionItemID,
				LicenseKey:         s.keygen(),
				Status:             StatusAvailable,
			})
		}

		if err := repoTx.BatchCreate(ctx, created); err != nil {
			return nil, fmt.Errorf("create licenses: %w", err)
		}
		result.Created = created

	case req.Seats < current:
		revocationOrder(active)
		now := s.now()

		for _, l := range active[:current-req.Seats] {
			if l.Status == StatusAssigned && l.PractitionerID != nil {
				result.DetachedPractitionerIDs = append(result.DetachedPractitionerIDs, *l.PractitionerID)
			}

			if err := repoTx.Update(ctx, l.ID, map[string]any{
				"practitioner_id": nil,
				"assigned_at":     nil,
				"status":          StatusRevoked,
				"revoked_at":      now,
			}); err != nil {
				return nil, fmt.Errorf("revoke license %s: %w", l.ID, err)
			}

			l.PractitionerID = nil
			l.AssignedAt = nil
			l.Status = StatusRevoked
			l.RevokedAt = &now
			result.Revoked = append(result.Revoked, l)
		}
	}

	result.After = result.Before + len(result.Created) - len(result.Revoked)
	return result, nil
}

func (s *Service) publish(ctx context.Context, result *ReconcileResult) {
	event := events.Event{
		ID:         s.node.Generate().String(),
		Type:       events.LicenseSeatsReconciled,
		TenantID:   result.TenantID,
		OccurredAt: s.now(),
		Data: map[string]any{
			"subscription_item_id":      result.SubscriptionItemID,
			"before":                    result.Before,
			"after":                     result.After,
			"created":                   len(result.Created),
			"revoked":                   len(result.Revoked),
			"detached_practitioner_ids": result.DetachedPractitionerIDs,
		},
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("failed to publish seats reconciled event",
			zap.String("tenant_id", result.TenantID),
			zap.Error(err),
		)
	}
}

// Assign links an available license to a practitioner. A practitioner holds at most one license per tenant.
func (s *Service) Assign(ctx context.Context, tenantID, licenseID, practitionerID string) (*License, error) {
	zapLog := logger.FromContext(ctx).With(
		zap.String("tenant_id", tenantID),
		zap.String("license_id", licenseID),
		zap.String("practitioner_id", practitionerID),
	)

	if practitionerID == "" {
		return nil, errutil.BadRequest("practitioner id is required", nil)
	}

	var out *License
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.repo.WithTrx(tx).FindOne(ctx, &License{ID: licenseID, TenantID: tenantID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if l == nil {
			return ErrLicenseNotFound
		}

		out, err = s.assign(ctx, tx, l, practitionerID)
		return err
	})
	if err != nil {
		zapLog.Warn("failed to assign license", zap.Error(err))
		return nil, toServiceError(err)
	}

	zapLog.Info("license assigned")
	return out, nil
}

// AssignNext assigns the oldest available license of the tenant to the practitioner.
func (s *Service) AssignNext(ctx context.Context, tenantID, practitionerID string) (*License, error) {
	zapLog := logger.FromContext(ctx).With(
		zap.String("tenant_id", tenantID),
		zap.String("practitioner_id", practitionerID),
	)

	if practitionerID == "" {
		return nil, errutil.BadRequest("practitioner id is required", nil)
	}

	var out *License
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.repo.WithTrx(tx).FindOne(ctx, &License{TenantID: tenantID, Status: StatusAvailable},
			option.WithSortBy(option.QuerySortBy{
				SortBy:  "created_at",
				OrderBy: "asc",
				Allow:   map[string]bool{"created_at": true},
			}),
			option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}
		if l == nil {
			return ErrNoAvailableLicense
		}

		out, err = s.assign(ctx, tx, l, practitionerID)
		return err
	})
	if err != nil {
		zapLog.Warn("failed to assign next license", zap.Error(err))
		return nil, toServiceError(err)
	}

	zapLog.Info("license assigned", zap.String("license_id", out.ID))
	return out, nil
}

func (s *Service) assign(ctx context.Context, tx *gorm.DB, l *License, practitionerID string) (*License, error) {
	if l.Status != StatusAvailable {
		return nil, ErrLicenseNotAvailable
	}

	held, err := s.repo.WithTrx(tx).Count(ctx, &License{
		TenantID:       l.TenantID,
		PractitionerID: &practitionerID,
		Status:         StatusAssigned,
	})
	if err != nil {
		return nil, err
	}
	if held > 0 {
		return nil, ErrPractitionerHasLicense
	}

	now := s.now()
	if err := s.repo.WithTrx(tx).Update(ctx, l.ID, map[string]any{
		"status":          StatusAssigned,
		"practitioner_id": practitionerID,
		"assigned_at":     now,
	}); err != nil {
		return nil, err
	}

	l.Status = StatusAssigned
	l.PractitionerID = &practitionerID
	l.AssignedAt = &now
	return l, nil
}

// Unassign frees an assigned license back to the available pool.
func (s *Service) Unassign(ctx context.Context, tenantID, licenseID string) (*License, error) {
	zapLog := logger.FromContext(ctx).With(
		zap.String("tenant_id", tenantID),
		zap.String("license_id", licenseID),
	)

	var out *License
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.repo.WithTrx(tx).FindOne(ctx, &License{ID: licenseID, TenantID: tenantID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if l == nil {
			return ErrLicenseNotFound
		}
		if l.Status != StatusAssigned {
			return ErrLicenseNotAssigned
		}

		if err := s.repo.WithTrx(tx).Update(ctx, l.ID, map[string]any{
			"status":          StatusAvailable,
			"practitioner_id": nil,
			"assigned_at":     nil,
		}); err != nil {
			return err
		}

		l.Status = StatusAvailable
		l.PractitionerID = nil
		l.AssignedAt = nil
		out = l
		return nil
	})
	if err != nil {
		zapLog.Warn("failed to unassign license", zap.Error(err))
		return nil, toServiceError(err)
	}

	zapLog.Info("license unassigned")
	return out, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) ([]*License, error) {
	query := &License{TenantID: tenantID, Status: filter.Status}
	if filter.SubscriptionItemID != "" {
		query.SubscriptionItemID = &filter.SubscriptionItemID
	}
	if filter.PractitionerID != "" {
		query.PractitionerID = &filter.PractitionerID
	}

	licenses, err := s.repo.Find(ctx, query, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "asc",
		Allow:   map[string]bool{"created_at": true},
	}))
	if err != nil {
		logger.FromContext(ctx).Error("failed to list licenses", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to list licenses", err)
	}

	return licenses, nil
}

// Summary counts the tenant's licenses per status. Seats is every non-revoked license.
func (s *Service) Summary(ctx context.Context, tenantID string) (*Summary, error) {
	out := &Summary{TenantID: tenantID}

	counts := map[Status]*int64{
		StatusAvailable: &out.Available,
		StatusAssigned:  &out.Assigned,
		StatusRevoked:   &out.Revoked,
	}
	for status, dst := range counts {
		n, err := s.repo.Count(ctx, &License{TenantID: tenantID, Status: status})
		if err != nil {
			logger.FromContext(ctx).Error("failed to count licenses", zap.String("tenant_id", tenantID), zap.Error(err))
			return nil, errutil.Internal("failed to summarize licenses", err)
		}
		*dst = n
	}

	out.Seats = out.Available + out.Assigned
	return out, nil
}

func scopeOption(subscriptionItemID *string) option.QueryOption {
	if subscriptionItemID == nil {
		return option.IsNull("subscription_item_id")
	}
	return option.ApplyOperator(option.Condition{
		Field:    "subscription_item_id",
		Operator: option.EQ,
		Value:    *subscriptionItemID,
	})
}

// revocationOrder sorts licenses so the ones to revoke come first:
// available before assigned, then oldest first, then lowest id.
func revocationOrder(licenses []*License) {
	sort.SliceStable(licenses, func(i, j int) bool {
		a, b := licenses[i], licenses[j]
		if pa, pb := statusPriority(a.Status), statusPriority(b.Status); pa != pb {
			return pa < pb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return idLess(a.ID, b.ID)
	})
}

func statusPriority(s Status) int {
	switch s {
	case StatusAvailable:
		return 0
	case StatusAssigned:
		return 1
	default:
		return 2
	}
}

// idLess orders numeric snowflake strings numerically.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func toServiceError(err error) error {
	switch {
	case errors.Is(err, ErrLicenseNotFound):
		return errutil.NotFound("license not found", err)
	case errors.Is(err, ErrNoAvailableLicense):
		return errutil.UnprocessableEntity("no available license", err)
	case errors.Is(err, ErrLicenseNotAvailable):
		return errutil.UnprocessableEntity("license is not available", err)
	case errors.Is(err, ErrLicenseNotAssigned):
		return errutil.UnprocessableEntity("license is not assigned", err)
	case errors.Is(err, ErrPractitionerHasLicense):
		return errutil.Conflict("practitioner already holds a license", err)
	default:
		return errutil.Internal("license operation failed", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
