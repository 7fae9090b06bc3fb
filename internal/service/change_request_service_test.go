package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

// fakeChangeRequestStore keeps rows in memory. Transactions run one at a time
// against a copy that replaces the live state only when fn succeeds. With
// readBarrier set, transactions run concurrently: every LockChangeRequest
// waits on the barrier and UpdateChangeRequest compares against live rows.
type fakeChangeRequestStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	locations map[string]models.Location
	requests  map[string]models.ChangeRequest
	seq       int

	failUserUpdate bool
	staleCAS       bool
	readBarrier    *sync.WaitGroup
}

func newFakeChangeRequestStore() *fakeChangeRequestStore {
	return &fakeChangeRequestStore{
		users:     map[string]models.User{},
		locations: map[string]models.Location{},
		requests:  map[string]models.ChangeRequest{},
	}
}

func (f *fakeChangeRequestStore) addLocation(l models.Location) { f.locations[l.ID] = l }

func (f *fakeChangeRequestStore) addUser(u *models.User) { f.users[u.ID] = *u }

func (f *fakeChangeRequestStore) user(id string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeChangeRequestStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, unit repository.ChangeRequestUnit) error) error {
	f.mu.Lock()
	unit := &fakeChangeRequestUnit{store: f, users: map[string]models.User{}, requests: map[string]models.ChangeRequest{}, seq: f.seq}
	for k, v := range f.users {
		unit.users[k] = v
	}
	for k, v := range f.requests {
		unit.requests[k] = v
	}
	if f.readBarrier != nil {
		f.mu.Unlock()
		err := fn(ctx, unit)
		f.mu.Lock()
		defer f.mu.Unlock()
		if err != nil {
			return err
		}
		f.users = unit.users
		f.requests = unit.requests
		return nil
	}
	defer f.mu.Unlock()
	if err := fn(ctx, unit); err != nil {
		return err
	}
	f.users = unit.users
	f.requests = unit.requests
	f.seq = unit.seq
	return nil
}

// compareAndSwapLive applies the status change to the committed rows only
// when they still hold the expected status.
func (f *fakeChangeRequestStore) compareAndSwapLive(params repository.UpdateChangeRequestParams) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, ok := f.requests[params.ID]
	if !ok || live.Status != params.ExpectedStatus {
		return false
	}
	live.Status = params.Status
	f.requests[params.ID] = live
	return true
}

func (f *fakeChangeRequestStore) FindByID(_ context.Context, id string) (*models.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &request, nil
}

func (f *fakeChangeRequestStore) List(_ context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChangeRequest
	for _, request := range f.requests {
		if filter.RequesterID != "" || filter.TargetDistrictID != "" || filter.RegionID != "" {
			target := f.locations[request.TargetDistrictID]
			inRegion := filter.RegionID != "" && target.ParentID != nil && *target.ParentID == filter.RegionID
			if request.RequesterID != filter.RequesterID && request.TargetDistrictID != filter.TargetDistrictID && !inRegion {
				continue
			}
		}
		out = append(out, request)
	}
	return out, nil
}

type fakeChangeRequestUnit struct {
	store    *fakeChangeRequestStore
	users    map[string]models.User
	requests map[string]models.ChangeRequest
	seq      int
}

func (u *fakeChangeRequestUnit) LockChangeRequest(_ context.Context, id string) (*models.ChangeRequest, error) {
	if barrier := u.store.readBarrier; barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	request, ok := u.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &request, nil
}

func (u *fakeChangeRequestUnit) FindOpenChangeRequest(_ context.Context, requesterID string) (*models.ChangeRequest, error) {
	for _, request := range u.requests {
		if request.RequesterID == requesterID && !request.Status.Terminal() {
			return &request, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *fakeChangeRequestUnit) LockUser(_ context.Context, id string) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (u *fakeChangeRequestUnit) FindLocation(_ context.Context, id string) (*models.Location, error) {
	location, ok := u.store.locations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &location, nil
}

func (u *fakeChangeRequestUnit) FindTeamLead(_ context.Context, regionID string) (*models.User, error) {
	for _, user := range u.users {
		if user.Role == models.RoleTeamLead && user.AssignedTo(regionID) {
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *fakeChangeRequestUnit) FindIncumbent(_ context.Context, districtID, excludeUserID string) (*models.User, error) {
	for _, user := range u.users {
		if user.Role == models.RoleDataEntry && user.ID != excludeUserID && user.AssignedTo(districtID) {
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *fakeChangeRequestUnit) CreateChangeRequest(_ context.Context, request *models.ChangeRequest) error {
	u.seq++
	request.ID = "cr-" + string(rune('0'+u.seq))
	u.requests[request.ID] = *request
	return nil
}

func (u *fakeChangeRequestUnit) UpdateChangeRequest(_ context.Context, params repository.UpdateChangeRequestParams) error {
	if u.store.readBarrier != nil && !u.store.compareAndSwapLive(params) {
		return sql.ErrNoRows
	}
	current, ok := u.requests[params.ID]
	if !ok || current.Status != params.ExpectedStatus || u.store.staleCAS {
		return sql.ErrNoRows
	}
	current.Status = params.Status
	if params.Reason != nil {
		current.Reason = params.Reason
	}
	if params.DataEntryRespondedAt != nil {
		current.DataEntryRespondedAt = params.DataEntryRespondedAt
	}
	if params.TeamLeadRespondedAt != nil {
		current.TeamLeadRespondedAt = params.TeamLeadRespondedAt
	}
	if params.CompletedAt != nil {
		current.CompletedAt = params.CompletedAt
	}
	u.requests[params.ID] = current
	return nil
}

func (u *fakeChangeRequestUnit) UpdateUserLocation(_ context.Context, userID string, locationID *string, at time.Time) error {
	if u.store.failUserUpdate {
		return errors.New("connection reset")
	}
	user, ok := u.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.LocationID = locationID
	user.UpdatedAt = at
	u.users[userID] = user
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notificationIntent
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, userID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notificationIntent{UserID: userID, Message: message})
	return n.err
}

func (n *recordingNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, intent := range n.sent {
		out = append(out, intent.UserID)
	}
	return out
}

type fakeLocationReader map[string]models.Location

func (f fakeLocationReader) FindByID(_ context.Context, id string) (*models.Location, error) {
	location, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &location, nil
}

type changeRequestFixture struct {
	store    *fakeChangeRequestStore
	notifier *recordingNotifier
	svc      *ChangeRequestService
	clock    time.Time
}

func newChangeRequestFixture(t *testing.T) *changeRequestFixture {
	t.Helper()
	store := newFakeChangeRequestStore()
	store.addLocation(models.Location{ID: "r1", Name: "North", Type: models.LocationRegion})
	store.addLocation(models.Location{ID: "d1", Name: "Abobo", Type: models.LocationDistrict, ParentID: strPtr("r1")})
	store.addLocation(models.Location{ID: "d2", Name: "Cocody", Type: models.LocationDistrict, ParentID: strPtr("r1")})
	store.addLocation(models.Location{ID: "d3", Name: "Plateau", Type: models.LocationDistrict, ParentID: strPtr("r1")})
	store.addUser(wfUser("req", models.RoleDataEntry, "d1"))
	store.addUser(wfUser("inc", models.RoleDataEntry, "d2"))
	store.addUser(wfUser("bystander", models.RoleDataEntry, "d3"))
	store.addUser(wfUser("lead", models.RoleTeamLead, "r1"))

	fx := &changeRequestFixture{store: store, notifier: &recordingNotifier{}, clock: wfNow}
	fx.svc = NewChangeRequestService(store, fakeLocationReader(store.locations), fx.notifier, nil, nil,
		WithChangeRequestClock(func() time.Time {
			fx.clock = fx.clock.Add(time.Minute)
			return fx.clock
		}),
		WithChangeRequestMetrics(NewMetricsService()))
	return fx
}

func claimsFor(u models.User) *models.JWTClaims {
	claims := &models.JWTClaims{UserID: u.ID, Role: u.Role, Name: u.Name}
	if u.LocationID != nil {
		claims.LocationID = *u.LocationID
	}
	return claims
}

func (fx *changeRequestFixture) claims(id string) *models.JWTClaims {
	return claimsFor(fx.store.user(id))
}

func TestChangeRequestExchangeFlow(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2", IsExchange: true}, fx.claims("req"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestPendingDataEntry, created.Status)
	assert.Equal(t, []string{"inc"}, fx.notifier.recipients())

	staged, err := fx.svc.Approve(ctx, created.ID, fx.claims("inc"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestPendingTeamLead, staged.Status)

	done, err := fx.svc.Approve(ctx, created.ID, fx.claims("lead"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestAccepted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.False(t, done.DataEntryRespondedAt.Before(done.RequestedAt))
	assert.False(t, done.TeamLeadRespondedAt.Before(*done.DataEntryRespondedAt))

	assert.Equal(t, "d2", *fx.store.user("req").LocationID)
	assert.Equal(t, "d1", *fx.store.user("inc").LocationID)
	assert.Equal(t, "d3", *fx.store.user("bystander").LocationID)
	assert.Equal(t, "r1", *fx.store.user("lead").LocationID)
	assert.Equal(t, []string{"inc", "req", "lead", "inc", "req"}, fx.notifier.recipients())
}

func TestChangeRequestPlainTransferToVacancy(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()
	fx.store.addLocation(models.Location{ID: "d4", Name: "Yopougon", Type: models.LocationDistrict, ParentID: strPtr("r1")})

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d4"}, fx.claims("req"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestPendingTeamLead, created.Status)
	assert.Nil(t, created.DataEntryRespondedAt)

	done, err := fx.svc.ApproveByTeamLead(ctx, created.ID, fx.claims("lead"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestAccepted, done.Status)
	assert.Equal(t, "d4", *fx.store.user("req").LocationID)
	assert.Equal(t, "d2", *fx.store.user("inc").LocationID)
}

func TestChangeRequestUnplacedRequesterTransfers(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()
	fx.store.addLocation(models.Location{ID: "d4", Name: "Yopougon", Type: models.LocationDistrict, ParentID: strPtr("r1")})
	fx.store.addUser(wfUser("fresh", models.RoleDataEntry, ""))

	_, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2", IsExchange: true}, fx.claims("fresh"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTarget))

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d4"}, fx.claims("fresh"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestPendingTeamLead, created.Status)

	done, err := fx.svc.Approve(ctx, created.ID, fx.claims("lead"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestAccepted, done.Status)
	require.NotNil(t, fx.store.user("fresh").LocationID)
	assert.Equal(t, "d4", *fx.store.user("fresh").LocationID)
}

func TestChangeRequestPromotedRequesterIsNotMoved(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()
	fx.store.addLocation(models.Location{ID: "r2", Name: "South", Type: models.LocationRegion})
	fx.store.addLocation(models.Location{ID: "d4", Name: "Yopougon", Type: models.LocationDistrict, ParentID: strPtr("r1")})

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d4"}, fx.claims("req"))
	require.NoError(t, err)
	fx.store.addUser(wfUser("req", models.RoleTeamLead, "r2"))

	_, err = fx.svc.ApproveByTeamLead(ctx, created.ID, fx.claims("lead"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTarget))
	assert.Equal(t, models.ChangeRequestPendingTeamLead, fx.store.requests[created.ID].Status)
	promoted := fx.store.user("req")
	assert.Equal(t, models.RoleTeamLead, promoted.Role)
	assert.Equal(t, "r2", *promoted.LocationID)
}

func TestChangeRequestNoApproverPersistsNothing(t *testing.T) {
	fx := newChangeRequestFixture(t)
	fx.store.addLocation(models.Location{ID: "r2", Name: "South", Type: models.LocationRegion})
	fx.store.addLocation(models.Location{ID: "d9", Name: "Bassam", Type: models.LocationDistrict, ParentID: strPtr("r2")})

	_, err := fx.svc.Create(context.Background(), dto.CreateChangeRequest{TargetDistrictID: "d9"}, fx.claims("req"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoApproverFound))
	assert.Empty(t, fx.store.requests)
	assert.Empty(t, fx.notifier.recipients())
}

func TestChangeRequestSecondOpenRequestConflicts(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2"}, fx.claims("req"))
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d3"}, fx.claims("req"))
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = fx.svc.Create(ctx, dto.CreateChangeRequest{}, fx.claims("req"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestChangeRequestRejectionReason(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2"}, fx.claims("req"))
	require.NoError(t, err)

	_, err = fx.svc.Reject(ctx, created.ID, fx.claims("inc"), dto.RejectChangeRequest{Reason: "<b>nope</b> :("})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	unchanged, err := fx.svc.Get(ctx, created.ID, fx.claims("req"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestPendingDataEntry, unchanged.Status)

	rejected, err := fx.svc.RejectByDataEntry(ctx, created.ID, fx.claims("inc"), "no room ok")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestRejected, rejected.Status)
	require.NotNil(t, rejected.CompletedAt)
	assert.Equal(t, "no room ok", *rejected.Reason)
	assert.Equal(t, "d1", *fx.store.user("req").LocationID)
}

func TestChangeRequestTerminalIsFinal(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2"}, fx.claims("req"))
	require.NoError(t, err)
	_, err = fx.svc.RejectByDataEntry(ctx, created.ID, fx.claims("inc"), "district is full")
	require.NoError(t, err)
	before := fx.store.requests[created.ID]

	_, err = fx.svc.Approve(ctx, created.ID, fx.claims("inc"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
	_, err = fx.svc.ApproveByTeamLead(ctx, created.ID, fx.claims("lead"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
	_, err = fx.svc.RejectByTeamLead(ctx, created.ID, fx.claims("lead"), "a long enough reason")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
	assert.Equal(t, before, fx.store.requests[created.ID])
}

func TestChangeRequestPersistenceFailureRollsBack(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2", IsExchange: true}, fx.claims("req"))
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, created.ID, fx.claims("inc"))
	require.NoError(t, err)

	fx.store.failUserUpdate = true
	_, err = fx.svc.Approve(ctx, created.ID, fx.claims("lead"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, models.ChangeRequestPendingTeamLead, fx.store.requests[created.ID].Status)
	assert.Equal(t, "d1", *fx.store.user("req").LocationID)
	assert.Equal(t, "d2", *fx.store.user("inc").LocationID)

	fx.store.failUserUpdate = false
	done, err := fx.svc.Approve(ctx, created.ID, fx.claims("lead"))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestAccepted, done.Status)
}

func TestChangeRequestStaleWriteIsInvalidState(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2"}, fx.claims("req"))
	require.NoError(t, err)

	fx.store.staleCAS = true
	_, err = fx.svc.Approve(ctx, created.ID, fx.claims("inc"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
}

// Transactions in the fake run one at a time, so the losers here fail on the
// terminal status read. The interleaved variant below exercises the
// compare-and-set.
func TestChangeRequestConcurrentApprovalsApplyOnce(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2", IsExchange: true}, fx.claims("req"))
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, created.ID, fx.claims("inc"))
	require.NoError(t, err)

	lead := fx.claims("lead")
	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.Approve(ctx, created.ID, lead)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "d2", *fx.store.user("req").LocationID)
	assert.Equal(t, "d1", *fx.store.user("inc").LocationID)
}

func TestChangeRequestInterleavedApprovalsLoseOnStatusCheck(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2", IsExchange: true}, fx.claims("req"))
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, created.ID, fx.claims("inc"))
	require.NoError(t, err)

	// Both transactions read pending_team_lead before either writes.
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	fx.store.readBarrier = barrier

	lead := fx.claims("lead")
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.Approve(ctx, created.ID, lead)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, models.ChangeRequestAccepted, fx.store.requests[created.ID].Status)
	assert.Equal(t, "d2", *fx.store.user("req").LocationID)
	assert.Equal(t, "d1", *fx.store.user("inc").LocationID)
}

func TestChangeRequestNotificationFailureDoesNotRollBack(t *testing.T) {
	fx := newChangeRequestFixture(t)
	fx.notifier.err = errors.New("smtp down")

	created, err := fx.svc.Create(context.Background(), dto.CreateChangeRequest{TargetDistrictID: "d2"}, fx.claims("req"))
	require.NoError(t, err)
	assert.Contains(t, fx.store.requests, created.ID)
}

func TestChangeRequestVisibility(t *testing.T) {
	fx := newChangeRequestFixture(t)
	ctx := context.Background()

	created, err := fx.svc.Create(ctx, dto.CreateChangeRequest{TargetDistrictID: "d2"}, fx.claims("req"))
	require.NoError(t, err)

	for _, id := range []string{"req", "inc", "lead"} {
		_, err := fx.svc.Get(ctx, created.ID, fx.claims(id))
		assert.NoError(t, err, id)
	}
	_, err = fx.svc.Get(ctx, created.ID, fx.claims("bystander"))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = fx.svc.Get(ctx, created.ID, &models.JWTClaims{UserID: "v", Role: models.RoleViewer})
	assert.NoError(t, err)
	_, err = fx.svc.Get(ctx, "missing", fx.claims("req"))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	list, err := fx.svc.List(ctx, dto.ChangeRequestQuery{}, fx.claims("bystander"))
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = fx.svc.List(ctx, dto.ChangeRequestQuery{}, fx.claims("lead"))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = fx.svc.List(ctx, dto.ChangeRequestQuery{Status: []models.ChangeRequestStatus{"archived"}}, fx.claims("lead"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
