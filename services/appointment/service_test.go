package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"practice-controlplane/pkg/errutil"
	"practice-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type staticDirectory map[string]string

func (d staticDirectory) Names(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := d[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Appointment{}, &AppointmentPractitioner{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Directory: staticDirectory{"p1": "Dr Ada", "p2": "Dr Bo", "p3": "Dr Cy"},
	})
}

func TestCreateAndParticipants(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{
		TenantID:        "t1",
		PatientID:       "pat-1",
		ScheduledAt:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		PractitionerIDs: []string{"p3", "p1", "p3"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, a.Status)
	require.Len(t, a.Practitioners, 2)

	ids, err := svc.Participants(ctx, "t1", a.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"p3", "p1"}, ids)

	got, err := svc.Get(ctx, "t1", a.ID)
	require.NoError(t, err)
	require.Equal(t, "pat-1", got.PatientID)
}

func TestCreateRejectsUnknownPractitioner(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateRequest{
		TenantID:        "t1",
		PatientID:       "pat-1",
		ScheduledAt:     time.Now(),
		PractitionerIDs: []string{"p1", "ghost"},
	})
	require.ErrorIs(t, err, ErrUnknownPractitioner)
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))
}

func TestParticipantsUnknownAppointment(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Participants(context.Background(), "t1", "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestParticipantsAreTenantScoped(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{TenantID: "t1", PatientID: "pat-1", ScheduledAt: time.Now(), PractitionerIDs: []string{"p1"}})
	require.NoError(t, err)

	_, err = svc.Participants(ctx, "t2", a.ID)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}
