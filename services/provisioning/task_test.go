package provisioning

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"practice-controlplane/pkg/taskname"
)

func TestNewSeatReconcileTask(t *testing.T) {
	payload := SeatReconcilePayload{
		TenantID:           "42",
		SubscriptionItemID: "si_123",
		Seats:              5,
		Source:             "customer.subscription.updated",
		EventID:            "evt_1",
	}

	task, err := NewSeatReconcileTask(payload)
	require.NoError(t, err)
	require.Equal(t, taskname.LicenseSeatsReconcile, task.Type())

	var decoded SeatReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, payload, decoded)
}

func TestNewSeatReconcileTaskValidation(t *testing.T) {
	_, err := NewSeatReconcileTask(SeatReconcilePayload{Seats: 1})
	require.Error(t, err)

	_, err = NewSeatReconcileTask(SeatReconcilePayload{TenantID: "42", Seats: -1})
	require.Error(t, err)
}

func TestNewReconcileAllTask(t *testing.T) {
	task := NewReconcileAllTask()
	require.Equal(t, taskname.LicenseSeatsReconcileAll, task.Type())
	require.Empty(t, task.Payload())
}
