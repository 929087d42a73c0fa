package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformed is returned by Parse for bodies that are not the provider's JSON shape
var ErrMalformed = errors.New("malformed webhook payload")

// Notification is what an adapter extracts from a verified body
type Notification struct {
	EventType string
	// Confirmed is true only for a successful charge
	Confirmed         bool
	EscrowID          string
	ProviderReference string
}

// Provider adapts one payment provider. Adding a provider means adding one
// implementation and registering it with the gateway.
type Provider interface {
	Name() string
	SignatureHeader() string
	Verify(rawBody []byte, signature string) bool
	Parse(rawBody []byte) (*Notification, error)
}

/*=============================================================================
| Paystack
===============================================================================*/

const paystackSignatureHeader = "x-paystack-signature"

// Paystack signs the raw body with HMAC-SHA512 keyed by the secret key
type Paystack struct {
	secret string
}

func NewPaystack(secret string) *Paystack {
	return &Paystack{secret: strings.TrimSpace(secret)}
}

func (p *Paystack) Name() string            { return "paystack" }
func (p *Paystack) SignatureHeader() string { return paystackSignatureHeader }

func (p *Paystack) Verify(rawBody []byte, signature string) bool {
	if p.secret == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secret))
	_, _ = mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), provided)
}

type paystackPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}

func (p *Paystack) Parse(rawBody []byte) (*Notification, error) {
	var payload paystackPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload.Event == "" {
		return nil, ErrMalformed
	}
	return &Notification{
		EventType:         payload.Event,
		Confirmed:         payload.Event == "charge.success",
		EscrowID:          escrowIDFromMetadata(payload.Data.Metadata),
		ProviderReference: payload.Data.Reference,
	}, nil
}

/*=============================================================================
| Flutterwave
===============================================================================*/

const flutterwaveSignatureHeader = "verif-hash"

// Flutterwave echoes the dashboard secret hash verbatim in verif-hash
type Flutterwave struct {
	secretHash string
}

func NewFlutterwave(secretHash string) *Flutterwave {
	return &Flutterwave{secretHash: strings.TrimSpace(secretHash)}
}

func (f *Flutterwave) Name() string            { return "flutterwave" }
func (f *Flutterwave) SignatureHeader() string { return flutterwaveSignatureHeader }

func (f *Flutterwave) Verify(_ []byte, signature string) bool {
	if f.secretHash == "" {
		return false
	}
	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(f.secretHash))
}

type flutterwavePayload struct {
	Event string `json:"event"`
	Data  struct {
		Status string          `json:"status"`
		FlwRef string          `json:"flw_ref"`
		TxRef  string          `json:"tx_ref"`
		Meta   json.RawMessage `json:"meta"`
	} `json:"data"`
	MetaData json.RawMessage `json:"meta_data"`
}

func (f *Flutterwave) Parse(rawBody []byte) (*Notification, error) {
	var payload flutterwavePayload
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload.Event == "" {
		return nil, ErrMalformed
	}

	escrowID := escrowIDFromMetadata(payload.Data.Meta)
	if escrowID == "" {
		escrowID = escrowIDFromMetadata(payload.MetaData)
	}
	reference := payload.Data.FlwRef
	if reference == "" {
		reference = payload.Data.TxRef
	}
	return &Notification{
		EventType:         payload.Event,
		Confirmed:         payload.Event == "charge.completed" && strings.EqualFold(payload.Data.Status, "successful"),
		EscrowID:          escrowID,
		ProviderReference: reference,
	}, nil
}

// escrowIDFromMetadata reads escrow_id from a metadata object. Some
// integrations send the metadata object JSON-encoded inside a string.
func escrowIDFromMetadata(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	var meta struct {
		EscrowID string `json:"escrow_id"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return strings.TrimSpace(meta.EscrowID)
}
