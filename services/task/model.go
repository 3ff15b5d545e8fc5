package task

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// ReconcileAll is the Task.Name of the periodic seat sweep.
	ReconcileAll = "license_seats_reconcile_all"

	// SweepTenant marks jobs that cover the whole fleet rather than one tenant.
	SweepTenant = "*"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

type Task struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(32)"`
	Name        string    `gorm:"column:name;uniqueIndex;type:varchar(100);not null"`
	Description string    `gorm:"column:description;type:text"`
	Schedule    string    `gorm:"column:schedule;type:varchar(50)"` // HH:MM, daily
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Job is one execution of a task, either for a single tenant or for the whole sweep.
type Job struct {
	ID          string         `gorm:"column:id;primaryKey;type:varchar(32)"`
	TaskID      string         `gorm:"column:task_id;index;not null"`
	TenantID    string         `gorm:"column:tenant_id;index;not null"`
	Status      JobStatus      `gorm:"column:status;type:varchar(20);default:'pending'"`
	ErrorMsg    string         `gorm:"column:error_msg;type:text"`
	StartedAt   *time.Time     `gorm:"column:started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
}

// SweepReport summarizes one reconcile-all run.
type SweepReport struct {
	Tenants int `json:"tenants"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}
