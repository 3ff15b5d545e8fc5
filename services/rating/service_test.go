package rating

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/events"
	"practice-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type participantsFunc func(ctx context.Context, tenantID, appointmentID string) ([]string, error)

func (f participantsFunc) Participants(ctx context.Context, tenantID, appointmentID string) ([]string, error) {
	return f(ctx, tenantID, appointmentID)
}

type staticNames map[string]string

func (s staticNames) Names(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := s[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func newTestService(t *testing.T, ids ...string) (*Service, *events.Recorder, *[]string) {
	t.Helper()

	db := testutil.NewTestDB(t, &PractitionerRating{}, &Feedback{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	current := append([]string(nil), ids...)
	recorder := &events.Recorder{}
	svc := NewService(ServiceParams{
		DB:   db,
		Node: node,
		Participants: participantsFunc(func(ctx context.Context, tenantID, appointmentID string) ([]string, error) {
			return current, nil
		}),
		Directory: staticNames{"A": "Dr A", "B": "Dr B", "C": "Dr C", "D": "Dr D"},
		Publisher: recorder,
	})
	return svc, recorder, &current
}

func TestSubmitFeedbackStoresDistribution(t *testing.T) {
	svc, recorder, _ := newTestService(t, "A", "B", "C")

	result, err := svc.SubmitFeedback(context.Background(), FeedbackRequest{
		TenantID:                "t1",
		AppointmentID:           "appt-1",
		PatientID:               "pat-1",
		TotalRating:             5,
		LeadPractitionerID:      "A",
		CalledOutPractitionerID: "B",
		Comment:                 "great visit",
	})
	require.NoError(t, err)
	require.Equal(t, "great visit", result.Feedback.Comment)
	require.Len(t, result.Ratings, 3)

	byID := map[string]*PractitionerRating{}
	for _, r := range result.Ratings {
		byID[r.PractitionerID] = r
	}
	require.Equal(t, "2.05", byID["A"].RatingPoints.StringFixed(2))
	require.Equal(t, "1.67", byID["B"].RatingPoints.StringFixed(2))
	require.Equal(t, "1.28", byID["C"].RatingPoints.StringFixed(2))
	require.Equal(t, "Dr A", byID["A"].PractitionerName)
	require.True(t, byID["A"].IsLead)
	require.True(t, byID["B"].IsCalledOut)
	require.Equal(t, "pat-1", byID["C"].PatientID)
	require.Equal(t, "A", result.Ratings[0].PractitionerID)

	require.Len(t, recorder.Events(), 1)
	require.Equal(t, events.RatingDistributed, recorder.Events()[0].Type)
}

func TestSubmitFeedbackReplacesPreviousRows(t *testing.T) {
	svc, _, current := newTestService(t, "A", "B", "C")
	ctx := context.Background()

	_, err := svc.SubmitFeedback(ctx, FeedbackRequest{TenantID: "t1", AppointmentID: "appt-1", TotalRating: 5, LeadPractitionerID: "A"})
	require.NoError(t, err)

	*current = []string{"B", "D"}
	result, err := svc.SubmitFeedback(ctx, FeedbackRequest{TenantID: "t1", AppointmentID: "appt-1", TotalRating: 4, Comment: "second"})
	require.NoError(t, err)
	require.Len(t, result.Ratings, 2)
	require.Equal(t, "second", result.Feedback.Comment)

	rows, err := svc.ListAppointmentRatings(ctx, "t1", "appt-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.Contains(t, []string{"B", "D"}, r.PractitionerID)
		require.Equal(t, "2.00", r.RatingPoints.StringFixed(2))
		require.False(t, r.IsLead)
	}

	var feedbackRows int64
	require.NoError(t, svc.db.Model(&Feedback{}).Count(&feedbackRows).Error)
	require.Equal(t, int64(1), feedbackRows)
}

func TestSubmitFeedbackWithoutPractitioners(t *testing.T) {
	svc, recorder, _ := newTestService(t)

	_, err := svc.SubmitFeedback(context.Background(), FeedbackRequest{TenantID: "t1", AppointmentID: "appt-1", TotalRating: 5})
	require.ErrorIs(t, err, ErrNoPractitioners)
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))
	require.Empty(t, recorder.Events())
}

func TestSubmitFeedbackRejectsNonPositiveRating(t *testing.T) {
	svc, _, _ := newTestService(t, "A")

	_, err := svc.SubmitFeedback(context.Background(), FeedbackRequest{TenantID: "t1", AppointmentID: "appt-1", TotalRating: 0})
	require.ErrorIs(t, err, ErrInvalidRating)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

func TestSubmitFeedbackIgnoresUnresolvedLead(t *testing.T) {
	svc, _, _ := newTestService(t, "A", "X")

	result, err := svc.SubmitFeedback(context.Background(), FeedbackRequest{
		TenantID:           "t1",
		AppointmentID:      "appt-1",
		TotalRating:        5,
		LeadPractitionerID: "X",
	})
	require.NoError(t, err)
	for _, r := range result.Ratings {
		require.False(t, r.IsLead)
		require.Equal(t, "2.50", r.RatingPoints.StringFixed(2))
	}
}

func TestSubmitFeedbackPassesThroughLookupErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.participants = participantsFunc(func(ctx context.Context, tenantID, appointmentID string) ([]string, error) {
		return nil, errutil.NotFound("appointment not found", nil)
	})

	_, err := svc.SubmitFeedback(context.Background(), FeedbackRequest{TenantID: "t1", AppointmentID: "missing", TotalRating: 5})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	boom := errors.New("boom")
	svc.participants = participantsFunc(func(ctx context.Context, tenantID, appointmentID string) ([]string, error) {
		return nil, boom
	})
	_, err = svc.SubmitFeedback(context.Background(), FeedbackRequest{TenantID: "t1", AppointmentID: "appt", TotalRating: 5})
	require.ErrorIs(t, err, boom)
	require.True(t, errutil.Is(err, errutil.StatusInternal))
}

func TestPractitionerSummary(t *testing.T) {
	svc, _, _ := newTestService(t, "A", "B")
	ctx := context.Background()

	_, err := svc.SubmitFeedback(ctx, FeedbackRequest{TenantID: "t1", AppointmentID: "appt-1", TotalRating: 4, LeadPractitionerID: "A"})
	require.NoError(t, err)
	_, err = svc.SubmitFeedback(ctx, FeedbackRequest{TenantID: "t1", AppointmentID: "appt-2", TotalRating: 2})
	require.NoError(t, err)

	summary, err := svc.PractitionerSummary(ctx, "t1", "A")
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.Count)
	require.Equal(t, int64(1), summary.LeadCount)
	require.Equal(t, int64(0), summary.CalledOutCount)
	// appt-1: A = (2+0.8)*4/4.8 = 2.33, appt-2: A = 1.00
	require.InDelta(t, 1.67, summary.AveragePoints, 0.01)

	empty, err := svc.PractitionerSummary(ctx, "t1", "nobody")
	require.NoError(t, err)
	require.Equal(t, int64(0), empty.Count)
	require.Zero(t, empty.AveragePoints)
}
