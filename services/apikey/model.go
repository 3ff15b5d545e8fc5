package apikey

import (
	"time"

	"github.com/lib/pq"
)

type APIKeyType string

const (
	APIKeyTypeServer  APIKeyType = "server"
	APIKeyTypeWebhook APIKeyType = "webhook"
)

type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
)

// keyPrefix marks keys issued by the practice control plane.
const keyPrefix = "pcsk_live_"

type APIKey struct {
	ID         string         `gorm:"column:id;primaryKey" json:"id"`
	TenantID   string         `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	KeyID      string         `gorm:"column:key_id;uniqueIndex;not null" json:"key_id"`
	KeyType    APIKeyType     `gorm:"column:key_type;type:varchar(20);not null" json:"key_type"`
	SecretHash string         `gorm:"column:secret_hash;not null" json:"-"`
	Scopes     pq.StringArray `gorm:"column:scopes;type:text[];not null" json:"scopes"` // portal roles, e.g. {'practice_admin'}
	Status     APIKeyStatus   `gorm:"column:status;type:varchar(20);default:'active';not null" json:"status"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

// IssuedKey carries the plaintext secret. It is only available right after Issue.
type IssuedKey struct {
	APIKey *APIKey `json:"api_key"`
	Secret string  `json:"secret"`
}

// Token is what callers send in X-Api-Key.
func (k *IssuedKey) Token() string {
	return k.APIKey.KeyID + "." + k.Secret
}
