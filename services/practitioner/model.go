package practitioner

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Practitioner struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID  string    `gorm:"column:tenant_id;not null;index;uniqueIndex:idx_practitioners_email,priority:1" json:"tenant_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Email     string    `gorm:"column:email;not null;uniqueIndex:idx_practitioners_email,priority:2" json:"email"`
	Status    Status    `gorm:"column:status;type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Practitioner) TableName() string {
	return "practitioners"
}

type CreateRequest struct {
	TenantID string `json:"-"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	// AssignLicense hands the practitioner the oldest available license right away.
	AssignLicense bool `json:"assign_license"`
}
