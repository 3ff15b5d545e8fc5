package bootstrap

import (
	"context"
	"fmt"

	"practice-controlplane/services/apikey"
	"practice-controlplane/services/appointment"
	"practice-controlplane/services/billing"
	"practice-controlplane/services/license"
	"practice-controlplane/services/practitioner"
	"practice-controlplane/services/rating"
	"practice-controlplane/services/task"
	"practice-controlplane/services/tenant"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models lists every table the control plane owns, in dependency order.
func Models() []any {
	return []any{
		&tenant.Tenant{},
		&apikey.APIKey{},
		&license.License{},
		&practitioner.Practitioner{},
		&appointment.Appointment{},
		&appointment.AppointmentPractitioner{},
		&rating.Feedback{},
		&rating.PractitionerRating{},
		&billing.WebhookEvent{},
		&task.Task{},
		&task.Job{},
	}
}

var defaultTasks = []task.Task{
	{
		ID:          task.ReconcileAll,
		Name:        task.ReconcileAll,
		Description: "Re-apply every tenant's seat count to its license pool",
		Schedule:    "01:00",
		IsActive:    true,
	},
}

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// Migrate creates or updates the schema and seeds task definitions. Safe to run repeatedly.
func (s *Service) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.AutoMigrate(Models()...); err != nil {
		zap.L().Error("[bootstrap] failed to migrate schema", zap.Error(err))
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaultTasks).Error; err != nil {
		zap.L().Error("[bootstrap] failed to seed tasks", zap.Error(err))
		return fmt.Errorf("seed tasks: %w", err)
	}

	zap.L().Info("[bootstrap] schema is up to date", zap.Int("models", len(Models())))
	return nil
}
