// Package webhook ingests payment provider deliveries. It identifies the
// provider from its signature header, verifies the signature, normalizes the
// payload and hands confirmed payments to the escrow ledger.
package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/logger"
	escrowModel "github.com/jibzus/bluefleet-sub001/models/escrow"
	receiptModel "github.com/jibzus/bluefleet-sub001/models/webhook"
	"github.com/jibzus/bluefleet-sub001/obs"
	"github.com/jibzus/bluefleet-sub001/services/escrow"
)

type Ledger interface {
	ApplyPaymentConfirmed(ctx context.Context, ev escrow.PaymentConfirmed) (*escrowModel.Escrow, bool, error)
}

type ReceiptStore interface {
	SaveWebhookReceipt(ctx context.Context, r *receiptModel.Receipt) error
}

// Result is returned for every delivery that should be acknowledged with 200
type Result struct {
	Provider string               `json:"provider"`
	Outcome  receiptModel.Outcome `json:"outcome"`
	EscrowID string               `json:"escrow_id,omitempty"`
	Status   string               `json:"escrow_status,omitempty"`
}

type Gateway struct {
	providers []Provider
	ledger    Ledger
	receipts  ReceiptStore

	Now func() time.Time
}

func NewGateway(ledger Ledger, receipts ReceiptStore, providers ...Provider) *Gateway {
	return &Gateway{providers: providers, ledger: ledger, receipts: receipts, Now: time.Now}
}

func (g *Gateway) provider(name string) Provider {
	for _, p := range g.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// VerifySignature checks a signature for a named provider
func (g *Gateway) VerifySignature(provider string, rawBody []byte, header string) bool {
	p := g.provider(provider)
	if p == nil {
		return false
	}
	return p.Verify(rawBody, header)
}

// identify picks the provider whose signature header is present. Exactly one must be.
func (g *Gateway) identify(headers http.Header) (Provider, string, error) {
	var found Provider
	var signature string
	for _, p := range g.providers {
		v := strings.TrimSpace(headers.Get(p.SignatureHeader()))
		if v == "" {
			continue
		}
		if found != nil {
			return nil, "", apperror.SignatureVerification("more than one provider signature header present")
		}
		found, signature = p, v
	}
	if found == nil {
		return nil, "", apperror.SignatureVerification("no provider signature header present")
	}
	return found, signature, nil
}

// Ingest processes one delivery. Errors carry the status to answer with:
// SignatureVerification (401), Validation (400) or NotVisible (503, the
// provider retries). Duplicates and irrelevant events are a nil error.
func (g *Gateway) Ingest(ctx context.Context, headers http.Header, rawBody []byte) (*Result, error) {
	ctx, span := obs.Tracer().Start(ctx, "webhook.ingest")
	defer span.End()

	receipt := &receiptModel.Receipt{
		RawBodySHA256: hashBody(rawBody),
		ReceivedAt:    g.Now(),
	}

	p, signature, err := g.identify(headers)
	if err != nil {
		receipt.Outcome = receiptModel.OutcomeRejected
		g.record(ctx, receipt)
		span.SetStatus(codes.Error, err.Error())
		logger.Warning(fmt.Sprintf("Webhook rejected: %v", err))
		return nil, err
	}
	receipt.Provider = p.Name()
	span.SetAttributes(attribute.String("webhook.provider", p.Name()))

	if !p.Verify(rawBody, signature) {
		receipt.Outcome = receiptModel.OutcomeRejected
		g.record(ctx, receipt)
		span.SetStatus(codes.Error, "bad signature")
		logger.Warning(fmt.Sprintf("Webhook from %s failed signature verification", p.Name()))
		return nil, apperror.SignatureVerification("invalid %s signature", p.Name())
	}
	receipt.SignatureValid = true

	n, err := p.Parse(rawBody)
	if err != nil {
		receipt.Outcome = receiptModel.OutcomeMalformed
		g.record(ctx, receipt)
		return nil, apperror.Validation("malformed %s payload", p.Name())
	}
	receipt.EventType = n.EventType
	receipt.EscrowID = n.EscrowID
	receipt.ProviderReference = n.ProviderReference

	result := &Result{Provider: p.Name(), EscrowID: n.EscrowID}
	if !n.Confirmed || n.EscrowID == "" {
		result.Outcome = receiptModel.OutcomeIgnored
		receipt.Outcome = result.Outcome
		g.record(ctx, receipt)
		logger.Info(fmt.Sprintf("Webhook %s/%s ignored", p.Name(), n.EventType))
		return result, nil
	}

	e, applied, err := g.ledger.ApplyPaymentConfirmed(ctx, escrow.PaymentConfirmed{
		EscrowID:          n.EscrowID,
		Provider:          p.Name(),
		ProviderReference: n.ProviderReference,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotVisible) {
			receipt.Outcome = receiptModel.OutcomeNotVisible
			g.record(ctx, receipt)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result.Outcome = receiptModel.OutcomeDuplicate
	if applied {
		result.Outcome = receiptModel.OutcomeApplied
	}
	result.Status = string(e.Status)
	receipt.Outcome = result.Outcome
	g.record(ctx, receipt)
	span.SetAttributes(attribute.String("webhook.outcome", string(result.Outcome)))
	return result, nil
}

// record stores the audit receipt; failures never change the response
func (g *Gateway) record(ctx context.Context, r *receiptModel.Receipt) {
	if g.receipts == nil {
		return
	}
	if err := g.receipts.SaveWebhookReceipt(ctx, r); err != nil {
		logger.Warning(fmt.Sprintf("Failed to save webhook receipt: %v", err))
	}
}

func hashBody(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
