package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/pkg/security"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrKeyRevoked = errors.New("api key is not active")
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[APIKey]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[APIKey](p.DB),
	}
}

// Issue creates a key for the tenant. Pass tx to issue inside a caller's transaction.
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, tenantID string, keyType APIKeyType, scopes []string) (*IssuedKey, error) {
	secret, err := security.GenerateBase64Secret(32)
	if err != nil {
		return nil, fmt.Errorf("generate api key secret: %w", err)
	}

	hash, err := security.HashArgon2(secret)
	if err != nil {
		return nil, fmt.Errorf("hash api key secret: %w", err)
	}

	id := s.node.Generate().String()
	key := &APIKey{
		ID:         id,
		TenantID:   tenantID,
		KeyID:      keyPrefix + id,
		KeyType:    keyType,
		SecretHash: hash,
		Scopes:     scopes,
		Status:     APIKeyStatusActive,
	}

	if err := s.repo.WithTrx(tx).Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	return &IssuedKey{APIKey: key, Secret: secret}, nil
}

// Verify checks secret against the stored hash of keyID.
func (s *Service) Verify(ctx context.Context, keyID, secret string) (*APIKey, error) {
	key, err := s.repo.FindOne(ctx, &APIKey{KeyID: keyID})
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidKey
	}

	if key.Status != APIKeyStatusActive || (key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt)) {
		return nil, ErrKeyRevoked
	}

	ok, err := security.VerifyArgon2(secret, key.SecretHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidKey
	}

	now := time.Now()
	if err := s.repo.Update(ctx, key.ID, map[string]any{"last_used_at": now}); err != nil {
		zap.L().Warn("failed to touch api key", zap.String("key_id", keyID), zap.Error(err))
	}
	key.LastUsedAt = &now

	return key, nil
}

// VerifyKey authenticates an X-Api-Key value of the form <key_id>.<secret>.
func (s *Service) VerifyKey(ctx context.Context, token string) (*auth.Principal, error) {
	keyID, secret, ok := strings.Cut(token, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, ErrInvalidKey
	}

	key, err := s.Verify(ctx, keyID, secret)
	if err != nil {
		return nil, err
	}

	return &auth.Principal{
		Subject:  key.KeyID,
		TenantID: key.TenantID,
		Roles:    key.Scopes,
	}, nil
}

func (s *Service) Revoke(ctx context.Context, tenantID, keyID string) error {
	key, err := s.repo.FindOne(ctx, &APIKey{TenantID: tenantID, KeyID: keyID})
	if err != nil {
		return err
	}
	if key == nil {
		return ErrInvalidKey
	}

	return s.repo.Update(ctx, key.ID, map[string]any{"status": APIKeyStatusRevoked})
}
