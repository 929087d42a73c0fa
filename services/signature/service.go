// Package signature collects the owner and operator signatures on a contract
// and opens the escrow when the second one lands.
package signature

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/broker"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/httpServices/documents"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/escrow"
	"github.com/jibzus/bluefleet-sub001/services/capability"
)

type Store interface {
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetContract(ctx context.Context, id string) (*contract.Contract, error)
	GetContractByBooking(ctx context.Context, bookingID string) (*contract.Contract, error)
	AddSignature(ctx context.Context, contractID string, sig *contract.Signature, pending *escrow.Escrow) (*contract.Contract, bool, error)
}

// DocumentStore persists signature images and returns a reference plus hash
type DocumentStore interface {
	PersistDocument(ctx context.Context, doc documents.Document) (*documents.Stored, error)
}

type Service struct {
	store     Store
	docs      DocumentStore
	publisher broker.Publisher
	cfg       *config.Config

	Now func() time.Time
}

func NewService(store Store, docs DocumentStore, cfg *config.Config, publisher broker.Publisher) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	return &Service{store: store, docs: docs, publisher: publisher, cfg: cfg, Now: time.Now}
}

type SignInput struct {
	// AssertedRole is optional; when set it must match the caller's relation to the booking
	AssertedRole contract.SignerRole
	Blob         []byte
	ContentType  string
}

type Verification struct {
	SignerID     string `json:"signer_id"`
	StoredHash   string `json:"stored_hash"`
	ComputedHash string `json:"computed_hash"`
	Match        bool   `json:"match"`
}

// PlatformFee applies basis points to an amount in minor units, rounding down.
// The amount is split on 10000 so no intermediate product overflows for fees up to 100%.
func PlatformFee(amountMinor, basisPoints int64) int64 {
	return (amountMinor/10000)*basisPoints + (amountMinor%10000)*basisPoints/10000
}

// Sign records the actor's signature. The second required signature seals the
// contract and opens a PENDING escrow for the booking.
func (s *Service) Sign(ctx context.Context, actor capability.Actor, contractID string, in SignInput) (*contract.Contract, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, storeError(err, "contract %s", contractID)
	}

	caps := capability.ForContract(actor, c)
	if !caps.IsParty() {
		return nil, apperror.Authorization("only the vessel owner or the operator can sign")
	}
	if in.AssertedRole != "" && !in.AssertedRole.IsValid() {
		return nil, apperror.Validation("role must be owner or operator")
	}
	if in.AssertedRole != "" && in.AssertedRole != caps.Role() {
		return nil, apperror.RoleMismatch("signing as %s but the caller is the booking %s", in.AssertedRole, caps.Role())
	}
	if c.Status == contract.ContractStatusFullySigned {
		return nil, apperror.State("contract %s is already fully signed", c.ID)
	}
	if c.HasSigned(actor.ID) {
		return nil, apperror.Conflict("%s has already signed contract %s", actor.ID, c.ID)
	}
	if len(in.Blob) == 0 {
		return nil, apperror.Validation("signature image is required")
	}

	b, err := s.store.GetBooking(ctx, c.BookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", c.BookingID)
	}

	hash := documents.HashContent(in.Blob)
	stored, err := s.docs.PersistDocument(ctx, documents.Document{
		Name:        fmt.Sprintf("contracts/%s/%s.sig", c.ID, actor.ID),
		ContentType: in.ContentType,
		Content:     in.Blob,
		Metadata: map[string]string{
			"contract_id": c.ID,
			"signer_id":   actor.ID,
			"role":        string(caps.Role()),
		},
	})
	if err != nil {
		return nil, apperror.Collaborator(err, "document store unavailable")
	}
	if stored.Hash != "" && !strings.EqualFold(stored.Hash, hash) {
		return nil, apperror.Collaborator(errors.New("content hash mismatch"), "document store returned a different hash")
	}

	now := s.Now()
	sig := &contract.Signature{
		SignerID:    actor.ID,
		Role:        caps.Role(),
		DocumentURL: stored.URL,
		ContentHash: hash,
		SignedAt:    now,
	}
	updated, executed, err := s.store.AddSignature(ctx, c.ID, sig, s.pendingEscrow(b, now))
	switch {
	case errors.Is(err, database.ErrContractSealed):
		return nil, apperror.State("contract %s is already fully signed", c.ID)
	case errors.Is(err, database.ErrDuplicateSigner):
		return nil, apperror.Conflict("%s has already signed contract %s", actor.ID, c.ID)
	case err != nil:
		return nil, storeError(err, "contract %s", c.ID)
	}

	logger.Info(fmt.Sprintf("Contract %s signed by %s as %s", c.ID, actor.ID, caps.Role()))
	if executed {
		logger.Success(fmt.Sprintf("Contract %s fully executed, escrow %s opened", updated.ID, deref(updated.EscrowID)))
		s.publish(ctx, broker.ContractExecuted, map[string]interface{}{
			"contract_id": updated.ID,
			"booking_id":  updated.BookingID,
			"escrow_id":   deref(updated.EscrowID),
			"signed_at":   updated.SignedAt,
		})
	}
	return updated, nil
}

func (s *Service) pendingEscrow(b *booking.Booking, now time.Time) *escrow.Escrow {
	e := &escrow.Escrow{
		ID:            uuid.NewString(),
		Status:        escrow.EscrowStatusPending,
		Currency:      b.Currency,
		ConfigVersion: s.cfg.Version,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if b.PriceMinor != nil {
		amount := *b.PriceMinor
		fee := PlatformFee(amount, s.cfg.Platform.FeeBasisPoints)
		e.AmountMinor = &amount
		e.PlatformFeeMinor = &fee
	}
	return e
}

// VerifySignature recomputes the hash of a presented signature image and
// compares it with the one recorded at signing
func (s *Service) VerifySignature(ctx context.Context, actor capability.Actor, contractID, signerID string, blob []byte) (*Verification, error) {
	c, err := s.Get(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, apperror.Validation("signature image is required")
	}

	for _, sig := range c.Signatures {
		if sig.SignerID != signerID {
			continue
		}
		computed := documents.HashContent(blob)
		return &Verification{
			SignerID:     signerID,
			StoredHash:   sig.ContentHash,
			ComputedHash: computed,
			Match:        subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(sig.ContentHash))) == 1,
		}, nil
	}
	return nil, apperror.NotFound("no signature by %s on contract %s", signerID, c.ID)
}

func (s *Service) Get(ctx context.Context, actor capability.Actor, contractID string) (*contract.Contract, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, storeError(err, "contract %s", contractID)
	}
	if !capability.ForContract(actor, c).CanView() {
		return nil, apperror.Authorization("not a party to contract %s", c.ID)
	}
	return c, nil
}

func (s *Service) GetByBooking(ctx context.Context, actor capability.Actor, bookingID string) (*contract.Contract, error) {
	c, err := s.store.GetContractByBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "contract for booking %s", bookingID)
	}
	if !capability.ForContract(actor, c).CanView() {
		return nil, apperror.Authorization("not a party to contract %s", c.ID)
	}
	return c, nil
}

func (s *Service) publish(ctx context.Context, key string, data interface{}) {
	if err := s.publisher.Publish(ctx, key, data); err != nil {
		logger.Warning(fmt.Sprintf("Failed to publish %s: %v", key, err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func storeError(err error, format string, args ...interface{}) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(format+" not found", args...)
	}
	return fmt.Errorf("load "+format+": %w", append(args, err)...)
}
