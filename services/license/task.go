package license

import (
	"context"
	"encoding/json"
	"fmt"

	"practice-controlplane/pkg/taskname"
	"practice-controlplane/services/provisioning"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandleSeatReconcileTask is the asynq handler for license:seats:reconcile.
// Invalid payloads are not retried.
func (s *Service) HandleSeatReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload provisioning.SeatReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid seat reconcile payload", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := payload.Validate(); err != nil {
		zap.L().Error("invalid seat reconcile payload", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	req := ReconcileRequest{
		TenantID: payload.TenantID,
		Seats:    payload.Seats,
	}
	if payload.SubscriptionItemID != "" {
		req.SubscriptionItemID = &payload.SubscriptionItemID
	}

	zap.L().Info("processing seat reconcile task",
		zap.String("tenant_id", payload.TenantID),
		zap.String("source", payload.Source),
		zap.String("event_id", payload.EventID),
	)

	if _, err := s.Reconcile(ctx, req); err != nil {
		return err
	}

	return nil
}

// RegisterHandlers mounts the license task handlers on the worker mux.
func RegisterHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.LicenseSeatsReconcile, s.HandleSeatReconcileTask)
}
