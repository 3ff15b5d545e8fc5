package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/featureflags"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/metrics"
	"practice-controlplane/pkg/minio"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/pkg/task"
	"practice-controlplane/services/license"
	"practice-controlplane/services/provisioning"
	"practice-controlplane/services/tenant"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultTolerance = 5 * time.Minute

var (
	ErrUnknownCustomer = errors.New("no tenant linked to billing customer")
	ErrMissingTenant   = errors.New("event does not reference a tenant")
)

// TenantDirectory is the part of the tenant service billing events drive.
type TenantDirectory interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
	FindByCustomer(ctx context.Context, customerID string) (*tenant.Tenant, error)
	Activate(ctx context.Context, a tenant.Activation) (*tenant.Tenant, error)
	UpdateSeats(ctx context.Context, tenantID string, seats int) (*license.ReconcileResult, error)
}

type SeatReconciler interface {
	Reconcile(ctx context.Context, req license.ReconcileRequest) (*license.ReconcileResult, error)
}

type Service struct {
	cfg      *config.Config
	tenants  TenantDirectory
	seats    SeatReconciler
	enqueuer task.Enqueuer
	flags    featureflags.FeatureFlag
	store    minio.ObjectStore
	metrics  *metrics.Collector
	repo     repository.Repository[WebhookEvent]
	db       *gorm.DB

	now func() time.Time
}

type ServiceParams struct {
	fx.In
	Config   *config.Config
	DB       *gorm.DB
	Tenants  TenantDirectory
	Seats    SeatReconciler
	Enqueuer task.Enqueuer            `optional:"true"`
	Flags    featureflags.FeatureFlag `optional:"true"`
	Store    minio.ObjectStore        `optional:"true"`
	Metrics  *metrics.Collector       `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:      p.Config,
		tenants:  p.Tenants,
		seats:    p.Seats,
		enqueuer: p.Enqueuer,
		flags:    p.Flags,
		store:    p.Store,
		metrics:  p.Metrics,
		repo:     repository.ProvideStore[WebhookEvent](p.DB),
		db:       p.DB,
		now:      time.Now,
	}
}

// HandleWebhook verifies, records and applies one delivery. Deliveries whose event was already
// processed or ignored are acknowledged without side effects. Failed events are retried on redelivery.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	log := logger.FromContext(ctx)

	secret := s.cfg.Billing.WebhookSecret
	if secret == "" {
		return nil, errutil.ServiceUnavailable("billing webhooks are not configured", nil)
	}

	tolerance := s.cfg.Billing.Tolerance
	if tolerance == 0 {
		tolerance = defaultTolerance
	}
	if err := VerifySignature(secret, signature, body, s.now(), tolerance); err != nil {
		log.Warn("rejected billing webhook", zap.Error(err))
		s.metrics.ObserveWebhook("unknown", "rejected")
		return nil, errutil.BadRequest("invalid webhook signature", err)
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, errutil.BadRequest("malformed webhook payload", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, errutil.BadRequest("webhook payload requires id and type", nil)
	}

	log = log.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))

	existing, err := s.repo.FindOne(ctx, &WebhookEvent{ID: evt.ID})
	if err != nil {
		log.Error("failed to look up webhook event", zap.Error(err))
		return nil, errutil.Internal("failed to look up webhook event", err)
	}
	if existing != nil && existing.Status != EventFailed {
		log.Info("duplicate billing webhook acknowledged")
		s.metrics.ObserveWebhook(evt.Type, "duplicate")
		return &Outcome{EventID: evt.ID, Type: evt.Type, Status: existing.Status, Duplicate: true}, nil
	}

	record := &WebhookEvent{
		ID:        evt.ID,
		Type:      evt.Type,
		Payload:   body,
		ObjectKey: s.archive(ctx, evt, body),
	}

	outcome := &Outcome{EventID: evt.ID, Type: evt.Type}
	changes, handled, err := s.dispatch(ctx, evt)
	if err == nil {
		for i := range changes {
			if err = s.apply(ctx, evt.ID, &changes[i]); err != nil {
				break
			}
		}
	}
	outcome.Changes = changes

	switch {
	case err != nil:
		log.Error("failed to process billing webhook", zap.Error(err))
		record.Status = EventFailed
		record.Error = err.Error()
	case !handled:
		record.Status = EventIgnored
	default:
		record.Status = EventProcessed
		processedAt := s.now()
		record.ProcessedAt = &processedAt
	}
	outcome.Status = record.Status

	if saveErr := s.save(ctx, record); saveErr != nil {
		log.Error("failed to record webhook event", zap.Error(saveErr))
		if err == nil {
			err = errutil.Internal("failed to record webhook event", saveErr)
		}
	}

	s.metrics.ObserveWebhook(evt.Type, string(record.Status))
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return outcome, err
		}
		return outcome, errutil.Internal("failed to process billing webhook", err)
	}

	log.Info("billing webhook processed", zap.String("status", string(record.Status)), zap.Int("changes", len(changes)))
	return outcome, nil
}

func (s *Service) save(ctx context.Context, record *WebhookEvent) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error", "payload", "object_key", "processed_at", "updated_at"}),
	}).Create(record).Error
}

// archive stores the raw body and returns its object key. Archive failures never block processing.
func (s *Service) archive(ctx context.Context, evt Event, body []byte) string {
	if s.store == nil {
		return ""
	}

	key := fmt.Sprintf("webhooks/billing/%s/%s.json", s.now().UTC().Format("2006/01/02"), evt.ID)
	if err := s.store.Put(ctx, key, body, "application/json"); err != nil {
		logger.FromContext(ctx).Warn("failed to archive billing webhook", zap.String("event_id", evt.ID), zap.Error(err))
		return ""
	}
	return key
}

// dispatch turns an event into seat changes. handled is false for event types billing does not act on.
func (s *Service) dispatch(ctx context.Context, evt Event) (changes []SeatChange, handled bool, err error) {
	switch evt.Type {
	case EventCheckoutCompleted:
		var session CheckoutSession
		if err := json.Unmarshal(evt.Data.Object, &session); err != nil {
			return nil, true, errutil.BadRequest("malformed checkout session", err)
		}
		changes, err := s.checkoutCompleted(ctx, session)
		return changes, true, err

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub Subscription
		if err := json.Unmarshal(evt.Data.Object, &sub); err != nil {
			return nil, true, errutil.BadRequest("malformed subscription", err)
		}
		changes, err := s.subscriptionChanged(ctx, sub, evt.Type == EventSubscriptionDeleted)
		return changes, true, err

	default:
		return nil, false, nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, session CheckoutSession) ([]SeatChange, error) {
	tenantID := session.TenantID()
	if tenantID == "" {
		return nil, errutil.UnprocessableEntity("checkout session has no tenant reference", ErrMissingTenant)
	}

	if _, err := s.tenants.Activate(ctx, tenant.Activation{
		TenantID:             tenantID,
		StripeCustomerID:     session.Customer,
		StripeSubscriptionID: session.Subscription,
	}); err != nil {
		return nil, err
	}

	// Subscription checkouts get their seats from the subscription events, one pool per item.
	// Only one-off purchases fill the tenant-wide pool.
	seats := session.Seats()
	if seats == 0 || session.Subscription != "" {
		return nil, nil
	}
	return []SeatChange{{TenantID: tenantID, Seats: seats}}, nil
}

// subscriptionChanged maps every subscription item to its own license scope.
// A deleted or lapsed subscription takes its items and the tenant-wide pool to zero seats.
func (s *Service) subscriptionChanged(ctx context.Context, sub Subscription, deleted bool) ([]SeatChange, error) {
	t, err := s.resolveTenant(ctx, sub)
	if err != nil {
		return nil, err
	}

	entitled := !deleted && sub.Active()
	changes := make([]SeatChange, 0, len(sub.Items.Data))
	for _, item := range sub.Items.Data {
		if item.ID == "" {
			continue
		}
		seats := 0
		if entitled && item.Quantity > 0 {
			seats = item.Quantity
		}
		itemID := item.ID
		changes = append(changes, SeatChange{TenantID: t.ID, SubscriptionItemID: &itemID, Seats: seats})
	}
	if !entitled && t.Seats > 0 {
		changes = append(changes, SeatChange{TenantID: t.ID, Seats: 0})
	}
	return changes, nil
}

func (s *Service) resolveTenant(ctx context.Context, sub Subscription) (*tenant.Tenant, error) {
	if id := sub.Metadata["tenant_id"]; id != "" {
		return s.tenants.GetTenant(ctx, id)
	}

	t, err := s.tenants.FindByCustomer(ctx, sub.Customer)
	if err != nil {
		return nil, errutil.Internal("failed to resolve tenant", err)
	}
	if t == nil {
		return nil, errutil.NotFound(fmt.Sprintf("customer %q is not linked to a tenant", sub.Customer), ErrUnknownCustomer)
	}
	return t, nil
}

// apply runs one seat change. Subscription item scopes move to the worker queue when the
// async flag is on for the tenant. Tenant-wide changes always update the tenant row inline.
func (s *Service) apply(ctx context.Context, eventID string, change *SeatChange) error {
	if change.SubscriptionItemID == nil {
		_, err := s.tenants.UpdateSeats(ctx, change.TenantID, change.Seats)
		return err
	}

	if s.async(ctx, change.TenantID) {
		t, err := provisioning.NewSeatReconcileTask(provisioning.SeatReconcilePayload{
			TenantID:           change.TenantID,
			SubscriptionItemID: *change.SubscriptionItemID,
			Seats:              change.Seats,
			Source:             "billing_webhook",
			EventID:            eventID,
		})
		if err != nil {
			return errutil.BadRequest("invalid seat change", err)
		}
		if _, err := s.enqueuer.Enqueue(ctx, t); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			return errutil.Internal("failed to enqueue seat reconcile", err)
		}
		change.Queued = true
		return nil
	}

	_, err := s.seats.Reconcile(ctx, license.ReconcileRequest{
		TenantID:           change.TenantID,
		SubscriptionItemID: change.SubscriptionItemID,
		Seats:              change.Seats,
	})
	return err
}

func (s *Service) async(ctx context.Context, tenantID string) bool {
	if s.enqueuer == nil || s.flags == nil {
		return false
	}
	return s.flags.IsEnabled(ctx, tenantID, featureflags.AsyncSeatReconcile)
}
