package license

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusAssigned  Status = "assigned"
	StatusRevoked   Status = "revoked"
)

// License is one purchased seat. Revoked licenses are kept for audit and never reused.
type License struct {
	ID                 string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID           string     `gorm:"column:tenant_id;not null;index:idx_licenses_scope" json:"tenant_id"`
	SubscriptionItemID *string    `gorm:"column:subscription_item_id;index:idx_licenses_scope" json:"subscription_item_id,omitempty"`
	LicenseKey         string     `gorm:"column:license_key;uniqueIndex;not null" json:"license_key"`
	Status             Status     `gorm:"column:status;type:varchar(20);not null;default:'available';index" json:"status"`
	PractitionerID     *string    `gorm:"column:practitioner_id;index" json:"practitioner_id,omitempty"`
	AssignedAt         *time.Time `gorm:"column:assigned_at" json:"assigned_at,omitempty"`
	RevokedAt          *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (License) TableName() string {
	return "licenses"
}

// GenerateKey returns a random license key like LIC-1A2B3C4D-5E6F7A8B-9C0D1E2F-3A4B5C6D.
func GenerateKey() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("LIC-%s-%s-%s-%s", raw[0:8], raw[8:16], raw[16:24], raw[24:32])
}

type ReconcileRequest struct {
	TenantID           string  `json:"tenant_id"`
	SubscriptionItemID *string `json:"subscription_item_id,omitempty"`
	Seats              int     `json:"seats"`
}

type ReconcileResult struct {
	TenantID                string     `json:"tenant_id"`
	SubscriptionItemID      *string    `json:"subscription_item_id,omitempty"`
	Before                  int        `json:"before"`
	After                   int        `json:"after"`
	Created                 []*License `json:"created"`
	Revoked                 []*License `json:"revoked"`
	DetachedPractitionerIDs []string   `json:"detached_practitioner_ids"`
}

// Changed reports whether the reconcile created or revoked anything.
func (r *ReconcileResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Revoked) > 0
}

type ListFilter struct {
	Status             Status
	SubscriptionItemID string
	PractitionerID     string
}

type Summary struct {
	TenantID  string `json:"tenant_id"`
	Seats     int64  `json:"seats"`
	Available int64  `json:"available"`
	Assigned  int64  `json:"assigned"`
	Revoked   int64  `json:"revoked"`
}
