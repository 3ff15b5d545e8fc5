package provisioning

import (
	"encoding/json"
	"fmt"
	"time"

	"practice-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
)

// SeatReconcilePayload asks a worker to bring one license scope to Seats.
type SeatReconcilePayload struct {
	TenantID           string `json:"tenant_id"`
	SubscriptionItemID string `json:"subscription_item_id,omitempty"`
	Seats              int    `json:"seats"`
	Source             string `json:"source,omitempty"`
	EventID            string `json:"event_id,omitempty"`
}

func (p SeatReconcilePayload) Validate() error {
	if p.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if p.Seats < 0 {
		return fmt.Errorf("seats must not be negative, got %d", p.Seats)
	}
	return nil
}

// NewSeatReconcileTask builds a license:seats:reconcile task. Deliveries for the same scope and event collapse through TaskID.
func NewSeatReconcileTask(p SeatReconcilePayload) (*asynq.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(60 * time.Second),
		asynq.Queue("critical"),
	}
	if p.EventID != "" {
		opts = append(opts, asynq.TaskID(fmt.Sprintf("seats:%s:%s:%s", p.TenantID, p.SubscriptionItemID, p.EventID)))
	}

	return asynq.NewTask(taskname.LicenseSeatsReconcile, payload, opts...), nil
}

// NewReconcileAllTask builds the periodic sweep that re-applies every tenant's seat count.
func NewReconcileAllTask() *asynq.Task {
	return asynq.NewTask(taskname.LicenseSeatsReconcileAll, nil,
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("low"),
	)
}
