package rating

import (
	"time"

	"github.com/shopspring/decimal"
)

// PractitionerRating is one practitioner's share of one appointment's feedback.
type PractitionerRating struct {
	ID               string          `gorm:"column:id;primaryKey" json:"id"`
	TenantID         string          `gorm:"column:tenant_id;not null;uniqueIndex:idx_practitioner_ratings_pair,priority:1" json:"tenant_id"`
	AppointmentID    string          `gorm:"column:appointment_id;not null;uniqueIndex:idx_practitioner_ratings_pair,priority:2" json:"appointment_id"`
	PractitionerID   string          `gorm:"column:practitioner_id;not null;uniqueIndex:idx_practitioner_ratings_pair,priority:3;index" json:"practitioner_id"`
	PatientID        string          `gorm:"column:patient_id" json:"patient_id"`
	PractitionerName string          `gorm:"column:practitioner_name" json:"practitioner_name"`
	RatingPoints     decimal.Decimal `gorm:"column:rating_points;type:numeric(10,2);not null" json:"rating_points"`
	Percentage       decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null" json:"percentage"`
	IsLead           bool            `gorm:"column:is_lead" json:"is_lead"`
	IsCalledOut      bool            `gorm:"column:is_called_out" json:"is_called_out"`
	BonusApplied     decimal.Decimal `gorm:"column:bonus_applied;type:numeric(10,2)" json:"bonus_applied"`
	TotalRating      decimal.Decimal `gorm:"column:total_rating;type:numeric(10,2)" json:"total_rating"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PractitionerRating) TableName() string {
	return "practitioner_ratings"
}

// Feedback is the patient's rating of an appointment as submitted. One per appointment.
type Feedback struct {
	ID                      string          `gorm:"column:id;primaryKey" json:"id"`
	TenantID                string          `gorm:"column:tenant_id;not null;uniqueIndex:idx_appointment_feedback_appointment,priority:1" json:"tenant_id"`
	AppointmentID           string          `gorm:"column:appointment_id;not null;uniqueIndex:idx_appointment_feedback_appointment,priority:2" json:"appointment_id"`
	PatientID               string          `gorm:"column:patient_id" json:"patient_id"`
	TotalRating             decimal.Decimal `gorm:"column:total_rating;type:numeric(10,2);not null" json:"total_rating"`
	LeadPractitionerID      *string         `gorm:"column:lead_practitioner_id" json:"lead_practitioner_id,omitempty"`
	CalledOutPractitionerID *string         `gorm:"column:called_out_practitioner_id" json:"called_out_practitioner_id,omitempty"`
	Comment                 string          `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Feedback) TableName() string {
	return "appointment_feedback"
}

type FeedbackRequest struct {
	TenantID                string  `json:"-"`
	AppointmentID           string  `json:"-"`
	PatientID               string  `json:"patient_id"`
	TotalRating             float64 `json:"total_rating"`
	LeadPractitionerID      string  `json:"lead_practitioner_id"`
	CalledOutPractitionerID string  `json:"called_out_practitioner_id"`
	Comment                 string  `json:"comment"`
}

type FeedbackResult struct {
	Feedback *Feedback            `json:"feedback"`
	Ratings  []*PractitionerRating `json:"ratings"`
}

type Summary struct {
	TenantID       string  `json:"tenant_id"`
	PractitionerID string  `json:"practitioner_id"`
	Count          int64   `json:"count"`
	AveragePoints  float64 `json:"average_points"`
	LeadCount      int64   `json:"lead_count"`
	CalledOutCount int64   `json:"called_out_count"`
}
