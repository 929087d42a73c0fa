package signature

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/broker"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/constants"
	"github.com/jibzus/bluefleet-sub001/database/memstore"
	"github.com/jibzus/bluefleet-sub001/httpServices/documents"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/escrow"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/jibzus/bluefleet-sub001/services/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now      = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	owner    = capability.NewActor("owner-1", constants.PermOwnerFull)
	operator = capability.NewActor("op-1", constants.PermOperatorFull)
	admin    = capability.NewActor("admin-1", constants.PermAdminFull)
	stranger = capability.NewActor("x", constants.PermOperatorFull)
)

type fakeDocs struct {
	mu        sync.Mutex
	calls     int
	err       error
	wrongHash bool
}

func (f *fakeDocs) PersistDocument(_ context.Context, doc documents.Document) (*documents.Stored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	hash := documents.HashContent(doc.Content)
	if f.wrongHash {
		hash = "deadbeef"
	}
	return &documents.Stored{URL: "https://docs.example/" + doc.Name, Hash: hash}, nil
}

type fixture struct {
	svc       *Service
	store     *memstore.Store
	docs      *fakeDocs
	published *broker.Recorder
	contract  *contract.Contract
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newPricedFixture(t, 1_000_000)
}

func newPricedFixture(t *testing.T, price int64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SaveVessel(ctx, &vessel.Vessel{ID: "v1", OwnerID: owner.ID}))

	b := &booking.Booking{
		ID: "b1", VesselID: "v1", OwnerID: owner.ID, OperatorID: operator.ID,
		Window:     booking.Window{StartAt: now.Add(24 * time.Hour), EndAt: now.Add(5 * 24 * time.Hour)},
		PriceMinor: &price, Currency: "NGN",
		Status: booking.BookingStatusRequested, LastModifiedBy: operator.ID, Revision: 1,
	}
	require.NoError(t, store.CreateBooking(ctx, b))
	accepted := *b
	accepted.Status = booking.BookingStatusAccepted
	accepted.Revision = 2
	c := &contract.Contract{ID: "c1", BookingID: b.ID, OwnerID: owner.ID, OperatorID: operator.ID, Status: contract.ContractStatusAwaitingSignatures}
	require.NoError(t, store.AcceptBooking(ctx, &accepted, booking.BookingStatusRequested, 1, true, c))

	docs := &fakeDocs{}
	rec := &broker.Recorder{}
	svc := NewService(store, docs, config.Defaults(), rec)
	svc.Now = func() time.Time { return now }
	return &fixture{svc: svc, store: store, docs: docs, published: rec, contract: c}
}

func TestBothSignaturesExecuteContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Sign(ctx, owner, "c1", SignInput{AssertedRole: contract.SignerRoleOwner, Blob: []byte("owner-sig")})
	require.NoError(t, err)
	assert.Equal(t, contract.ContractStatusAwaitingSignatures, c.Status)
	assert.Nil(t, c.SignedAt)
	assert.Equal(t, []string{owner.ID}, c.SignerIDs())
	assert.Equal(t, documents.HashContent([]byte("owner-sig")), c.Signatures[0].ContentHash)

	_, err = f.store.GetEscrowByBooking(ctx, "b1")
	assert.Error(t, err, "escrow opens only on full execution")

	c, err = f.svc.Sign(ctx, operator, "c1", SignInput{Blob: []byte("operator-sig")})
	require.NoError(t, err)
	assert.Equal(t, contract.ContractStatusFullySigned, c.Status)
	require.NotNil(t, c.SignedAt)
	assert.Equal(t, now, *c.SignedAt)
	require.NotNil(t, c.EscrowID)

	e, err := f.store.GetEscrowByBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, *c.EscrowID, e.ID)
	assert.Equal(t, escrow.EscrowStatusPending, e.Status)
	require.NotNil(t, e.AmountMinor)
	assert.Equal(t, int64(1_000_000), *e.AmountMinor)
	assert.Equal(t, int64(25_000), *e.PlatformFeeMinor)
	assert.Equal(t, config.Defaults().Version, e.ConfigVersion)
	assert.Equal(t, 1, f.published.Count(broker.ContractExecuted))
}

func TestSignRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Sign(ctx, stranger, "c1", SignInput{Blob: []byte("x")})
	assert.ErrorIs(t, err, apperror.ErrAuthorization)

	_, err = f.svc.Sign(ctx, admin, "c1", SignInput{Blob: []byte("x")})
	assert.ErrorIs(t, err, apperror.ErrAuthorization, "admins do not sign")

	_, err = f.svc.Sign(ctx, operator, "c1", SignInput{AssertedRole: contract.SignerRoleOwner, Blob: []byte("x")})
	assert.ErrorIs(t, err, apperror.ErrRoleMismatch)

	_, err = f.svc.Sign(ctx, operator, "c1", SignInput{AssertedRole: "broker", Blob: []byte("x")})
	assert.ErrorIs(t, err, apperror.ErrValidation, "unknown role")

	_, err = f.svc.Sign(ctx, operator, "c1", SignInput{})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Sign(ctx, operator, "missing", SignInput{Blob: []byte("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Sign(ctx, operator, "c1", SignInput{Blob: []byte("x")})
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, operator, "c1", SignInput{Blob: []byte("x")})
	assert.ErrorIs(t, err, apperror.ErrConflict, "signing twice")

	_, err = f.svc.Sign(ctx, owner, "c1", SignInput{Blob: []byte("y")})
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, owner, "c1", SignInput{Blob: []byte("y")})
	assert.ErrorIs(t, err, apperror.ErrState, "sealed contract")
}

func TestDocumentStoreOutageLeavesNoState(t *testing.T) {
	f := newFixture(t)
	f.docs.err = errors.New("connection refused")

	_, err := f.svc.Sign(context.Background(), owner, "c1", SignInput{Blob: []byte("sig")})
	assert.ErrorIs(t, err, apperror.ErrCollaborator)

	c, err := f.store.GetContract(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, c.Signatures)
}

func TestDocumentStoreHashMismatch(t *testing.T) {
	f := newFixture(t)
	f.docs.wrongHash = true

	_, err := f.svc.Sign(context.Background(), owner, "c1", SignInput{Blob: []byte("sig")})
	assert.ErrorIs(t, err, apperror.ErrCollaborator)
}

func TestConcurrentSecondSignatureOpensOneEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []capability.Actor{owner, operator} {
		wg.Add(1)
		go func(i int, actor capability.Actor) {
			defer wg.Done()
			_, errs[i] = f.svc.Sign(ctx, actor, "c1", SignInput{Blob: []byte(actor.ID)})
		}(i, actor)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	c, err := f.store.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, contract.ContractStatusFullySigned, c.Status)
	assert.Len(t, c.Signatures, 2)
	assert.Equal(t, 1, f.published.Count(broker.ContractExecuted))
}

func TestVerifySignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Sign(ctx, owner, "c1", SignInput{Blob: []byte("owner-sig")})
	require.NoError(t, err)

	v, err := f.svc.VerifySignature(ctx, admin, "c1", owner.ID, []byte("owner-sig"))
	require.NoError(t, err)
	assert.True(t, v.Match)

	v, err = f.svc.VerifySignature(ctx, operator, "c1", owner.ID, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, v.Match)

	_, err = f.svc.VerifySignature(ctx, operator, "c1", operator.ID, []byte("x"))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.VerifySignature(ctx, stranger, "c1", owner.ID, []byte("x"))
	assert.ErrorIs(t, err, apperror.ErrAuthorization)
}

func TestPlatformFee(t *testing.T) {
	assert.Equal(t, int64(250), PlatformFee(10_000, 250))
	assert.Equal(t, int64(0), PlatformFee(39, 250))
	assert.Equal(t, int64(0), PlatformFee(10_000, 0))
	assert.Equal(t, int64(3), PlatformFee(159, 250))
	assert.Equal(t, int64(2_500_000_000_000_000), PlatformFee(100_000_000_000_000_000, 250))
	assert.Equal(t, int64(math.MaxInt64), PlatformFee(math.MaxInt64, 10000))
}

func TestLargePriceOpensEscrowWithExactFee(t *testing.T) {
	f := newPricedFixture(t, 100_000_000_000_000_000)
	ctx := context.Background()

	_, err := f.svc.Sign(ctx, owner, "c1", SignInput{Blob: []byte("owner-sig")})
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, operator, "c1", SignInput{Blob: []byte("operator-sig")})
	require.NoError(t, err)

	e, err := f.store.GetEscrowByBooking(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, e.PlatformFeeMinor)
	assert.Equal(t, int64(2_500_000_000_000_000), *e.PlatformFeeMinor)
}
