package appointment

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Appointment struct {
	ID            string                    `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string                    `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	Code          string                    `gorm:"column:code;index" json:"code"`
	PatientID     string                    `gorm:"column:patient_id;not null;index" json:"patient_id"`
	ScheduledAt   time.Time                 `gorm:"column:scheduled_at;not null" json:"scheduled_at"`
	Status        Status                    `gorm:"column:status;type:varchar(20);not null;default:'scheduled'" json:"status"`
	Practitioners []AppointmentPractitioner `gorm:"foreignKey:AppointmentID" json:"practitioners"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// AppointmentPractitioner links a practitioner to an appointment. Position keeps the booking order.
type AppointmentPractitioner struct {
	AppointmentID  string `gorm:"column:appointment_id;primaryKey" json:"-"`
	PractitionerID string `gorm:"column:practitioner_id;primaryKey" json:"practitioner_id"`
	TenantID       string `gorm:"column:tenant_id;not null;index" json:"-"`
	Position       int    `gorm:"column:position;not null" json:"position"`
}

func (AppointmentPractitioner) TableName() string {
	return "appointment_practitioners"
}

type CreateRequest struct {
	TenantID        string    `json:"-"`
	PatientID       string    `json:"patient_id" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	PractitionerIDs []string  `json:"practitioner_ids" binding:"required,min=1"`
}
