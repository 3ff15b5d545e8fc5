package appointment

import (
	"context"
	"errors"
	"fmt"

	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/pkg/sequence"
	"practice-controlplane/services/practitioner"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrUnknownPractitioner = errors.New("unknown practitioner")
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	seq       sequence.Generator
	directory practitioner.Directory
	repo      repository.Repository[Appointment]
	links     repository.Repository[AppointmentPractitioner]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Seq       sequence.Generator `optional:"true"`
	Directory practitioner.Directory
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		seq:       p.Seq,
		directory: p.Directory,
		repo:      repository.ProvideStore[Appointment](p.DB),
		links:     repository.ProvideStore[AppointmentPractitioner](p.DB),
	}
}

// Create books an appointment with the given practitioners, in the order given.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", req.TenantID))

	ids := unique(req.PractitionerIDs)
	if req.TenantID == "" || req.PatientID == "" || len(ids) == 0 {
		return nil, errutil.BadRequest("tenant, patient and practitioners are required", nil)
	}

	names, err := s.directory.Names(ctx, req.TenantID, ids)
	if err != nil {
		zapLog.Error("failed to resolve practitioners", zap.Error(err))
		return nil, errutil.Internal("failed to create appointment", err)
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			return nil, errutil.UnprocessableEntity(fmt.Sprintf("unknown practitioner %s", id), ErrUnknownPractitioner)
		}
	}

	var code string
	if s.seq != nil {
		if code, err = s.seq.NextAppointmentCode(ctx, req.TenantID); err != nil {
			zapLog.Warn("failed to generate appointment code", zap.Error(err))
		}
	}

	a := &Appointment{
		ID:          s.node.Generate().String(),
		TenantID:    req.TenantID,
		Code:        code,
		PatientID:   req.PatientID,
		ScheduledAt: req.ScheduledAt,
		Status:      StatusScheduled,
	}

	links := make([]*AppointmentPractitioner, 0, len(ids))
	for i, id := range ids {
		links = append(links, &AppointmentPractitioner{
			AppointmentID:  a.ID,
			PractitionerID: id,
			TenantID:       req.TenantID,
			Position:       i,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(a).Error; err != nil {
			return err
		}
		return s.links.WithTrx(tx).BatchCreate(ctx, links)
	}); err != nil {
		zapLog.Error("failed to create appointment", zap.Error(err))
		return nil, errutil.Internal("failed to create appointment", err)
	}

	for _, l := range links {
		a.Practitioners = append(a.Practitioners, *l)
	}

	zapLog.Info("appointment created", zap.String("appointment_id", a.ID), zap.Int("practitioners", len(ids)))
	return a, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Appointment, error) {
	a, err := s.repo.FindOne(ctx, &Appointment{TenantID: tenantID, ID: id}, withPractitioners)
	if err != nil {
		logger.FromContext(ctx).Error("failed to get appointment", zap.String("appointment_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get appointment", err)
	}
	if a == nil {
		return nil, errutil.NotFound("appointment not found", ErrAppointmentNotFound)
	}
	return a, nil
}

// Participants returns the practitioner ids of the appointment in booking order.
func (s *Service) Participants(ctx context.Context, tenantID, appointmentID string) ([]string, error) {
	a, err := s.Get(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(a.Practitioners))
	for _, p := range a.Practitioners {
		ids = append(ids, p.PractitionerID)
	}
	return ids, nil
}

func withPractitioners(db *gorm.DB) *gorm.DB {
	return db.Preload("Practitioners", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
