package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/constants"
	"github.com/jibzus/bluefleet-sub001/database/memstore"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	escrowModel "github.com/jibzus/bluefleet-sub001/models/escrow"
	trackingModel "github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/jibzus/bluefleet-sub001/services/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start    = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end      = start.Add(4 * 24 * time.Hour)
	during   = start.Add(30 * time.Hour)
	owner    = capability.NewActor("owner-1", constants.PermOwnerFull)
	operator = capability.NewActor("op-1", constants.PermOperatorFull)
	admin    = capability.NewActor("admin-1", constants.PermAdminFull)
)

// fakeSource answers by identifier
type fakeSource struct {
	mu        sync.Mutex
	positions map[string]*trackingModel.Position
	errs      map[string]error
	block     map[string]chan struct{}
	panics    map[string]bool
	calls     atomic.Int32
}

func (f *fakeSource) FetchVesselPosition(ctx context.Context, id string) (*trackingModel.Position, error) {
	f.calls.Add(1)
	f.mu.Lock()
	pos, err, wait, boom := f.positions[id], f.errs[id], f.block[id], f.panics[id]
	f.mu.Unlock()
	if wait != nil {
		<-wait
	}
	if boom {
		panic("decoder bug for " + id)
	}
	return pos, err
}

// addCharter stores an accepted booking for a vessel, with a FUNDED escrow when funded is true
func addCharter(t *testing.T, store *memstore.Store, id string, specs vessel.Specs, funded bool) {
	t.Helper()
	ctx := context.Background()
	vesselID := "v-" + id
	require.NoError(t, store.SaveVessel(ctx, &vessel.Vessel{ID: vesselID, OwnerID: owner.ID, Specs: specs}))

	b := &booking.Booking{
		ID: id, VesselID: vesselID, OwnerID: owner.ID, OperatorID: operator.ID,
		Window: booking.Window{StartAt: start, EndAt: end},
		Status: booking.BookingStatusRequested, LastModifiedBy: operator.ID, Revision: 1,
	}
	require.NoError(t, store.CreateBooking(ctx, b))
	accepted := *b
	accepted.Status = booking.BookingStatusAccepted
	accepted.Revision = 2
	contractID := "c-" + id
	require.NoError(t, store.AcceptBooking(ctx, &accepted, booking.BookingStatusRequested, 1, true,
		&contract.Contract{ID: contractID, BookingID: id, OwnerID: owner.ID, OperatorID: operator.ID, Status: contract.ContractStatusAwaitingSignatures}))
	for _, signer := range []string{owner.ID, operator.ID} {
		_, _, err := store.AddSignature(ctx, contractID, &contract.Signature{SignerID: signer, SignedAt: start},
			&escrowModel.Escrow{ID: "e-" + id, Status: escrowModel.EscrowStatusPending})
		require.NoError(t, err)
	}
	if funded {
		_, applied, err := store.MarkFunded(ctx, "e-"+id, &escrowModel.Event{CreatedAt: start})
		require.NoError(t, err)
		require.True(t, applied)
	}
}

func newPoller(store *memstore.Store, source PositionSource, mutate ...func(*config.TrackingConfig)) *Poller {
	cfg := config.Defaults().Tracking
	for _, m := range mutate {
		m(&cfg)
	}
	p := NewPoller(store, source, cfg)
	p.Now = func() time.Time { return during }
	return p
}

func TestRunTracksEligibleCharters(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "b1", vessel.Specs{MMSI: "111111111"}, true)
	addCharter(t, store, "b2", vessel.Specs{}, true)
	addCharter(t, store, "b3", vessel.Specs{IMO: "9000003"}, false)

	source := &fakeSource{positions: map[string]*trackingModel.Position{
		"111111111": {Latitude: 4.5, Longitude: 7.1, RecordedAt: during.Add(-time.Minute)},
	}}
	summary, err := newPoller(store, source).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Eligible, "unfunded charters are not eligible")
	assert.Equal(t, 1, summary.Tracked)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int32(1), source.calls.Load(), "a vessel without identifier is never fetched")

	events, err := store.ListTrackingEvents(context.Background(), "b1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ais", events[0].Source)
	assert.Equal(t, "v-b1", events[0].VesselID)
	assert.Equal(t, during.Add(-time.Minute), events[0].RecordedAt)
}

func TestRunOutsideWindowFindsNothing(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "b1", vessel.Specs{MMSI: "111111111"}, true)

	p := newPoller(store, &fakeSource{})
	p.Now = func() time.Time { return end }
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Eligible, "the window is half-open")
}

func TestRunIsolatesFailures(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "ok", vessel.Specs{MMSI: "1"}, true)
	addCharter(t, store, "down", vessel.Specs{MMSI: "2"}, true)
	addCharter(t, store, "empty", vessel.Specs{MMSI: "3"}, true)
	addCharter(t, store, "bogus", vessel.Specs{MMSI: "4"}, true)

	source := &fakeSource{
		positions: map[string]*trackingModel.Position{
			"1": {Latitude: 1, Longitude: 1},
			"4": {Latitude: 91, Longitude: 0},
		},
		errs: map[string]error{"2": errors.New("upstream 500")},
	}
	summary, err := newPoller(store, source).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Eligible)
	assert.Equal(t, 1, summary.Tracked)
	assert.Equal(t, 1, summary.NoData)
	assert.Equal(t, 2, summary.Failed)

	results := map[string]Result{}
	for _, o := range summary.Outcomes {
		results[o.BookingID] = o.Result
	}
	assert.Equal(t, ResultTracked, results["ok"])
	assert.Equal(t, ResultFailed, results["down"])
	assert.Equal(t, ResultNoData, results["empty"])
	assert.Equal(t, ResultFailed, results["bogus"])

	events, _ := store.ListTrackingEvents(context.Background(), "bogus", time.Time{}, time.Time{})
	assert.Empty(t, events, "out-of-range positions are not stored")
}

func TestRunSurvivesPanickingSource(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "ok", vessel.Specs{MMSI: "1"}, true)
	addCharter(t, store, "broken", vessel.Specs{MMSI: "2"}, true)

	source := &fakeSource{
		positions: map[string]*trackingModel.Position{"1": {Latitude: 1, Longitude: 1}},
		panics:    map[string]bool{"2": true},
	}
	summary, err := newPoller(store, source).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Tracked)
	require.Equal(t, 1, summary.Failed)
	for _, o := range summary.Outcomes {
		if o.BookingID == "broken" {
			assert.Equal(t, ResultFailed, o.Result)
			assert.Contains(t, o.Reason, "panicked")
		}
	}
}

func TestRunTimesOutSlowFetches(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "slow", vessel.Specs{MMSI: "9"}, true)
	addCharter(t, store, "fast", vessel.Specs{MMSI: "8"}, true)

	release := make(chan struct{})
	defer close(release)
	source := &fakeSource{
		positions: map[string]*trackingModel.Position{"8": {Latitude: 1, Longitude: 1}},
		block:     map[string]chan struct{}{"9": release},
	}
	p := newPoller(store, source, func(c *config.TrackingConfig) {
		c.FetchTimeout = 50 * time.Millisecond
		c.TickDeadline = time.Second
	})

	started := time.Now()
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(started), time.Second)

	assert.Equal(t, 1, summary.Tracked)
	require.Equal(t, 1, summary.Failed)
	for _, o := range summary.Outcomes {
		if o.BookingID == "slow" {
			assert.Equal(t, "timeout", o.Reason)
		}
	}
}

func TestRunRespectsTickDeadline(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "a", vessel.Specs{MMSI: "1"}, true)
	addCharter(t, store, "b", vessel.Specs{MMSI: "2"}, true)

	release := make(chan struct{})
	defer close(release)
	source := &fakeSource{block: map[string]chan struct{}{"1": release, "2": release}}
	p := newPoller(store, source, func(c *config.TrackingConfig) {
		c.Workers = 1
		c.FetchTimeout = time.Minute
		c.TickDeadline = 50 * time.Millisecond
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	for _, o := range summary.Outcomes {
		assert.Equal(t, "timeout", o.Reason)
	}
}

func TestConcurrentTriggersShareOneTick(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "b1", vessel.Specs{MMSI: "1"}, true)

	release := make(chan struct{})
	source := &fakeSource{
		positions: map[string]*trackingModel.Position{"1": {Latitude: 1, Longitude: 1}},
		block:     map[string]chan struct{}{"1": release},
	}
	p := newPoller(store, source)

	var wg sync.WaitGroup
	summaries := make([]*Summary, 3)
	for i := range summaries {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Run(context.Background())
			assert.NoError(t, err)
			summaries[i] = s
		}()
	}
	// let every trigger reach the in-flight tick before it finishes
	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), source.calls.Load())
	for _, s := range summaries {
		require.NotNil(t, s)
		assert.Equal(t, 1, s.Tracked)
	}
	events, _ := store.ListTrackingEvents(context.Background(), "b1", time.Time{}, time.Time{})
	assert.Len(t, events, 1)
}

func TestRecordManualAndReadModel(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "b1", vessel.Specs{}, true)
	p := newPoller(store, &fakeSource{})
	ctx := context.Background()

	pos := trackingModel.Position{Latitude: 5, Longitude: 5, RecordedAt: start.Add(2 * time.Hour)}
	_, err := p.RecordManual(ctx, owner, "b1", pos)
	assert.ErrorIs(t, err, apperror.ErrAuthorization)

	_, err = p.RecordManual(ctx, admin, "b1", trackingModel.Position{Latitude: -91})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = p.RecordManual(ctx, admin, "b1", trackingModel.Position{Latitude: 1, RecordedAt: during.Add(time.Hour)})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	first, err := p.RecordManual(ctx, admin, "b1", pos)
	require.NoError(t, err)
	assert.Equal(t, "manual", first.Source)
	assert.Equal(t, admin.ID, first.CreatedBy)

	second, err := p.RecordManual(ctx, admin, "b1", trackingModel.Position{Latitude: 6, Longitude: 6, RecordedAt: start.Add(26 * time.Hour)})
	require.NoError(t, err)

	all, err := p.Events(ctx, operator, "b1", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	day := start.Add(24 * time.Hour)
	onDay, err := p.Events(ctx, owner, "b1", &day)
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, second.ID, onDay[0].ID)

	latest, err := p.Latest(ctx, operator, "b1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = p.Events(ctx, capability.NewActor("stranger"), "b1", nil)
	assert.ErrorIs(t, err, apperror.ErrAuthorization)
	_, err = p.Latest(ctx, admin, "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLatestWithoutEventsIsNotFound(t *testing.T) {
	store := memstore.New()
	addCharter(t, store, "b1", vessel.Specs{}, true)
	_, err := newPoller(store, &fakeSource{}).Latest(context.Background(), owner, "b1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
