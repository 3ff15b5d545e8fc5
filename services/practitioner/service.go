package practitioner

import (
	"context"
	"errors"

	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/services/license"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrEmailTaken           = errors.New("practitioner email already exists")
)

// LicenseAssigner hands out seats from the tenant's license pool.
type LicenseAssigner interface {
	AssignNext(ctx context.Context, tenantID, practitionerID string) (*license.License, error)
}

type Service struct {
	node      *snowflake.Node
	licenses  LicenseAssigner
	directory *CachedDirectory
	repo      repository.Repository[Practitioner]
}

type ServiceParams struct {
	fx.In
	Repo     repository.Repository[Practitioner]
	Node     *snowflake.Node
	Redis    *redis.Client `optional:"true"`
	Licenses LicenseAssigner
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:      p.Node,
		licenses:  p.Licenses,
		directory: NewCachedDirectory(p.Repo, p.Redis),
		repo:      p.Repo,
	}
}

// Directory exposes the cached name lookup.
func (s *Service) Directory() Directory {
	return s.directory
}

type CreateResult struct {
	Practitioner *Practitioner   `json:"practitioner"`
	License      *license.License `json:"license,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", req.TenantID))

	if req.TenantID == "" || req.Name == "" || req.Email == "" {
		return nil, errutil.BadRequest("tenant, name and email are required", nil)
	}

	exist, err := s.repo.FindOne(ctx, &Practitioner{TenantID: req.TenantID, Email: req.Email})
	if err != nil {
		zapLog.Error("failed to check practitioner email", zap.Error(err))
		return nil, errutil.Internal("failed to create practitioner", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("practitioner email already exists", ErrEmailTaken)
	}

	p := &Practitioner{
		ID:       s.node.Generate().String(),
		TenantID: req.TenantID,
		Name:     req.Name,
		Email:    req.Email,
		Status:   StatusActive,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		zapLog.Error("failed to create practitioner", zap.Error(err))
		return nil, errutil.Internal("failed to create practitioner", err)
	}
	s.directory.Forget(ctx, req.TenantID, p.ID)

	result := &CreateResult{Practitioner: p}
	if req.AssignLicense {
		l, err := s.licenses.AssignNext(ctx, req.TenantID, p.ID)
		if err != nil {
			zapLog.Warn("practitioner created without license", zap.String("practitioner_id", p.ID), zap.Error(err))
		}
		result.License = l
	}

	zapLog.Info("practitioner created", zap.String("practitioner_id", p.ID))
	return result, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Practitioner, error) {
	p, err := s.repo.FindOne(ctx, &Practitioner{TenantID: tenantID, ID: id})
	if err != nil {
		logger.FromContext(ctx).Error("failed to get practitioner", zap.String("practitioner_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get practitioner", err)
	}
	if p == nil {
		return nil, errutil.NotFound("practitioner not found", ErrPractitionerNotFound)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, tenantID string, status Status) ([]*Practitioner, error) {
	rows, err := s.repo.Find(ctx, &Practitioner{TenantID: tenantID, Status: status})
	if err != nil {
		logger.FromContext(ctx).Error("failed to list practitioners", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to list practitioners", err)
	}
	return rows, nil
}
