package rating

import (
	"context"
	"errors"
	"time"

	"practice-controlplane/pkg/db/option"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/events"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/metrics"
	"practice-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipantLister returns the practitioner ids that took part in an appointment.
type ParticipantLister interface {
	Participants(ctx context.Context, tenantID, appointmentID string) ([]string, error)
}

// NameResolver maps practitioner ids to display names. Unknown ids are absent from the result.
type NameResolver interface {
	Names(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
}

type Service struct {
	db           *gorm.DB
	node         *snowflake.Node
	participants ParticipantLister
	directory    NameResolver
	publisher    events.Publisher
	metrics      *metrics.Collector

	ratings  repository.Repository[PractitionerRating]
	feedback repository.Repository[Feedback]
}

type ServiceParams struct {
	fx.In
	DB           *gorm.DB
	Node         *snowflake.Node
	Participants ParticipantLister
	Directory    NameResolver
	Publisher    events.Publisher   `optional:"true"`
	Metrics      *metrics.Collector `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Service{
		db:           p.DB,
		node:         p.Node,
		participants: p.Participants,
		directory:    p.Directory,
		publisher:    publisher,
		metrics:      p.Metrics,
		ratings:      repository.ProvideStore[PractitionerRating](p.DB),
		feedback:     repository.ProvideStore[Feedback](p.DB),
	}
}

// SubmitFeedback distributes the appointment's rating over its practitioners and stores
// the feedback with one rating row per practitioner. Resubmitting replaces the previous rows.
func (s *Service) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	zapLog := logger.FromContext(ctx).With(
		zap.String("tenant_id", req.TenantID),
		zap.String("appointment_id", req.AppointmentID),
	)

	if req.TenantID == "" || req.AppointmentID == "" {
		return nil, errutil.BadRequest("tenant and appointment are required", nil)
	}

	if req.TotalRating <= 0 {
		return nil, errutil.BadRequest("total rating must be positive", ErrInvalidRating)
	}

	ids, err := s.participants.Participants(ctx, req.TenantID, req.AppointmentID)
	if err != nil {
		zapLog.Error("failed to load appointment participants", zap.Error(err))
		return nil, passThrough(err, "failed to load appointment participants")
	}

	if len(ids) == 0 {
		zapLog.Warn("feedback for appointment without practitioners")
		return nil, errutil.UnprocessableEntity("appointment has no practitioners", ErrNoPractitioners)
	}

	names, err := s.directory.Names(ctx, req.TenantID, ids)
	if err != nil {
		zapLog.Error("failed to resolve practitioner names", zap.Error(err))
		return nil, errutil.Internal("failed to resolve practitioners", err)
	}

	practitioners := make([]Practitioner, 0, len(ids))
	for _, id := range ids {
		practitioners = append(practitioners, Practitioner{ID: id, Name: names[id]})
	}

	leadID := resolved(names, req.LeadPractitionerID)
	calledOutID := resolved(names, req.CalledOutPractitionerID)
	if leadID != req.LeadPractitionerID || calledOutID != req.CalledOutPractitionerID {
		zapLog.Info("ignoring unknown bonus practitioner",
			zap.String("lead_practitioner_id", req.LeadPractitionerID),
			zap.String("called_out_practitioner_id", req.CalledOutPractitionerID),
		)
	}

	allocations := Distribute(req.TotalRating, practitioners, leadID, calledOutID)
	total := decimal.NewFromFloat(req.TotalRating).Round(2)

	rows := make([]*PractitionerRating, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, &PractitionerRating{
			ID:               s.node.Generate().String(),
			TenantID:         req.TenantID,
			AppointmentID:    req.AppointmentID,
			PractitionerID:   a.PractitionerID,
			PatientID:        req.PatientID,
			PractitionerName: a.Name,
			RatingPoints:     a.Points,
			Percentage:       a.Percentage,
			IsLead:           a.IsLead,
			IsCalledOut:      a.IsCalledOut,
			BonusApplied:     a.BonusApplied,
			TotalRating:      total,
		})
	}

	fb := &Feedback{
		ID:                      s.node.Generate().String(),
		TenantID:                req.TenantID,
		AppointmentID:           req.AppointmentID,
		PatientID:               req.PatientID,
		TotalRating:             total,
		LeadPractitionerID:      optional(req.LeadPractitionerID),
		CalledOutPractitionerID: optional(req.CalledOutPractitionerID),
		Comment:                 req.Comment,
	}

	result := &FeedbackResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "appointment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"patient_id", "total_rating", "lead_practitioner_id",
				"called_out_practitioner_id", "comment", "updated_at",
			}),
		}).Create(fb).Error; err != nil {
			return err
		}

		if err := s.replaceRatings(tx, req.TenantID, req.AppointmentID, ids, rows); err != nil {
			return err
		}

		stored, err := s.feedback.WithTrx(tx).FindOne(ctx, &Feedback{TenantID: req.TenantID, AppointmentID: req.AppointmentID})
		if err != nil {
			return err
		}
		result.Feedback = stored

		result.Ratings, err = s.ratings.WithTrx(tx).Find(ctx,
			&PractitionerRating{TenantID: req.TenantID, AppointmentID: req.AppointmentID},
			byPointsDesc(),
		)
		return err
	})
	if err != nil {
		zapLog.Error("failed to store feedback", zap.Error(err))
		return nil, errutil.Internal("failed to store feedback", err)
	}

	s.metrics.ObserveFeedback(len(rows))
	zapLog.Info("feedback stored", zap.Int("practitioners", len(rows)))

	if err := s.publisher.Publish(ctx, events.Event{
		ID:         s.node.Generate().String(),
		Type:       events.RatingDistributed,
		TenantID:   req.TenantID,
		OccurredAt: time.Now(),
		Data: map[string]any{
			"appointment_id": req.AppointmentID,
			"total_rating":   total.StringFixed(2),
			"allocations":    allocations,
		},
	}); err != nil {
		zapLog.Warn("failed to publish rating distributed event", zap.Error(err))
	}

	return result, nil
}

// replaceRatings upserts one row per (appointment, practitioner) and drops rows for
// practitioners that no longer take part. Readers never see the appointment without rows.
func (s *Service) replaceRatings(tx *gorm.DB, tenantID, appointmentID string, practitionerIDs []string, rows []*PractitionerRating) error {
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "appointment_id"}, {Name: "practitioner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"patient_id", "practitioner_name", "rating_points", "percentage",
			"is_lead", "is_called_out", "bonus_applied", "total_rating", "updated_at",
		}),
	}).Create(&rows).Error; err != nil {
		return err
	}

	return tx.Where("tenant_id = ? AND appointment_id = ?", tenantID, appointmentID).
		Where("practitioner_id NOT IN ?", practitionerIDs).
		Delete(&PractitionerRating{}).Error
}

func (s *Service) ListAppointmentRatings(ctx context.Context, tenantID, appointmentID string) ([]*PractitionerRating, error) {
	rows, err := s.ratings.Find(ctx, &PractitionerRating{TenantID: tenantID, AppointmentID: appointmentID}, byPointsDesc())
	if err != nil {
		logger.FromContext(ctx).Error("failed to list appointment ratings",
			zap.String("tenant_id", tenantID),
			zap.String("appointment_id", appointmentID),
			zap.Error(err),
		)
		return nil, errutil.Internal("failed to list ratings", err)
	}

	return rows, nil
}

// PractitionerSummary aggregates every rating row of one practitioner.
func (s *Service) PractitionerSummary(ctx context.Context, tenantID, practitionerID string) (*Summary, error) {
	var row struct {
		Count          int64
		Average        float64
		LeadCount      int64
		CalledOutCount int64
	}

	err := s.db.WithContext(ctx).Model(&PractitionerRating{}).
		Select(`COUNT(*) AS count,
			COALESCE(AVG(rating_points), 0) AS average,
			COALESCE(SUM(CASE WHEN is_lead THEN 1 ELSE 0 END), 0) AS lead_count,
			COALESCE(SUM(CASE WHEN is_called_out THEN 1 ELSE 0 END), 0) AS called_out_count`).
		Where("tenant_id = ? AND practitioner_id = ?", tenantID, practitionerID).
		Scan(&row).Error
	if err != nil {
		logger.FromContext(ctx).Error("failed to summarize practitioner ratings",
			zap.String("tenant_id", tenantID),
			zap.String("practitioner_id", practitionerID),
			zap.Error(err),
		)
		return nil, errutil.Internal("failed to summarize ratings", err)
	}

	return &Summary{
		TenantID:       tenantID,
		PractitionerID: practitionerID,
		Count:          row.Count,
		AveragePoints:  decimal.NewFromFloat(row.Average).Round(2).InexactFloat64(),
		LeadCount:      row.LeadCount,
		CalledOutCount: row.CalledOutCount,
	}, nil
}

func byPointsDesc() option.QueryOption {
	return option.WithSortBy(option.QuerySortBy{SortBy: "rating_points", OrderBy: "desc"})
}

func resolved(names map[string]string, id string) string {
	if _, ok := names[id]; !ok {
		return ""
	}
	return id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func passThrough(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}
