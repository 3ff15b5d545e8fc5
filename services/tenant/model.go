package tenant

import (
	"time"

	"practice-controlplane/services/apikey"
)

type TenantType string

var (
	Solo  TenantType = "solo"
	Group TenantType = "group"
)

func (t TenantType) String() string {
	switch t {
	case Solo, Group:
		return string(t)
	default:
		return ""
	}
}

type TenantStatus string

var (
	Pending   TenantStatus = "pending"
	Active    TenantStatus = "active"
	Suspended TenantStatus = "suspended"
	Archived  TenantStatus = "archived"
)

func (t TenantStatus) String() string {
	switch t {
	case Pending, Active, Suspended, Archived:
		return string(t)
	default:
		return ""
	}
}

// Tenant is one practice. Seats mirrors the tenant-wide license count last applied.
type Tenant struct {
	ID                   string       `gorm:"column:id;primaryKey" json:"id"`
	Code                 string       `gorm:"column:code;index" json:"code"`
	Type                 TenantType   `gorm:"column:type;type:varchar(20)" json:"type"`
	Name                 string       `gorm:"column:name;not null" json:"name"`
	Slug                 string       `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	CountryCode          string       `gorm:"column:country_code" json:"country_code"`
	Timezone             string       `gorm:"column:timezone" json:"timezone"`
	Status               TenantStatus `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	Seats                int          `gorm:"column:seats;not null;default:0" json:"seats"`
	StripeCustomerID     *string      `gorm:"column:stripe_customer_id;uniqueIndex" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string      `gorm:"column:stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

type CreateTenantRequest struct {
	Name        string     `json:"name" binding:"required"`
	Slug        string     `json:"slug"`
	Type        TenantType `json:"type"`
	CountryCode string     `json:"country_code"`
	Timezone    string     `json:"timezone"`
}

type CreateTenantResult struct {
	Tenant *Tenant           `json:"tenant"`
	APIKey *apikey.IssuedKey `json:"api_key"`
}

type ListTenantsResult struct {
	Tenants    []*Tenant `json:"tenants"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// Activation is what a completed checkout tells us about the tenant.
type Activation struct {
	TenantID             string
	StripeCustomerID     string
	StripeSubscriptionID string
	Seats                int
}
