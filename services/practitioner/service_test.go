package practitioner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"practice-controlplane/pkg/db/option"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/repository"
	"practice-controlplane/services/license"
	"practice-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeAssigner struct {
	err error
}

func (f *fakeAssigner) AssignNext(ctx context.Context, tenantID, practitionerID string) (*license.License, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &license.License{ID: "lic-1", TenantID: tenantID, PractitionerID: &practitionerID, Status: license.StatusAssigned}, nil
}

type countingRepo struct {
	repository.Repository[Practitioner]
	finds atomic.Int32
	gate  chan struct{}
}

func (r *countingRepo) Find(ctx context.Context, query *Practitioner, opts ...option.QueryOption) ([]*Practitioner, error) {
	r.finds.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return r.Repository.Find(ctx, query, opts...)
}

func newTestService(t *testing.T, assigner LicenseAssigner) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Practitioner{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{
		Repo:     repository.ProvideStore[Practitioner](db),
		Node:     node,
		Licenses: assigner,
	}), db
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t, &fakeAssigner{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{TenantID: "t1", Name: "Dr Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Nil(t, created.License)

	p, err := svc.Get(ctx, "t1", created.Practitioner.ID)
	require.NoError(t, err)
	require.Equal(t, "Dr Ada", p.Name)
	require.Equal(t, StatusActive, p.Status)

	_, err = svc.Get(ctx, "t2", created.Practitioner.ID)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = svc.Create(ctx, CreateRequest{TenantID: "t1", Name: "Dr Ada 2", Email: "ada@example.com"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateAssignsLicense(t *testing.T) {
	svc, _ := newTestService(t, &fakeAssigner{})

	created, err := svc.Create(context.Background(), CreateRequest{TenantID: "t1", Name: "Dr Ada", Email: "ada@example.com", AssignLicense: true})
	require.NoError(t, err)
	require.NotNil(t, created.License)
	require.Equal(t, created.Practitioner.ID, *created.License.PractitionerID)
}

func TestCreateWithoutAvailableLicense(t *testing.T) {
	svc, db := newTestService(t, &fakeAssigner{err: errors.New("no available license")})

	created, err := svc.Create(context.Background(), CreateRequest{TenantID: "t1", Name: "Dr Ada", Email: "ada@example.com", AssignLicense: true})
	require.NoError(t, err)
	require.Nil(t, created.License)

	var n int64
	require.NoError(t, db.Model(&Practitioner{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestDirectoryNames(t *testing.T) {
	svc, _ := newTestService(t, &fakeAssigner{})
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{TenantID: "t1", Name: "Dr Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateRequest{TenantID: "t1", Name: "Dr Bo", Email: "bo@example.com"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, CreateRequest{TenantID: "t2", Name: "Dr Cy", Email: "cy@example.com"})
	require.NoError(t, err)

	names, err := svc.Directory().Names(ctx, "t1", []string{a.Practitioner.ID, b.Practitioner.ID, other.Practitioner.ID, "unknown"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		a.Practitioner.ID: "Dr Ada",
		b.Practitioner.ID: "Dr Bo",
	}, names)

	empty, err := svc.Directory().Names(ctx, "t1", nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDirectorySharesConcurrentLookups(t *testing.T) {
	db := testutil.NewTestDB(t, &Practitioner{})
	require.NoError(t, db.Create(&Practitioner{ID: "p1", TenantID: "t1", Name: "Dr Ada", Email: "ada@example.com", Status: StatusActive}).Error)

	repo := &countingRepo{Repository: repository.ProvideStore[Practitioner](db), gate: make(chan struct{})}
	dir := NewCachedDirectory(repo, nil)

	var wg sync.WaitGroup
	results := make(chan map[string]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names, err := dir.Names(context.Background(), "t1", []string{"p1"})
			if err != nil {
				t.Error(err)
				return
			}
			results <- names
		}()
	}

	require.Eventually(t, func() bool { return repo.finds.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(results)

	for names := range results {
		require.Equal(t, "Dr Ada", names["p1"])
	}
	require.Less(t, repo.finds.Load(), int32(5))
}
