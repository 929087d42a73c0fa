package webhook

import (
	"time"
)

// Outcome records what ingestion did with a delivery
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeRejected   Outcome = "rejected"
	OutcomeNotVisible Outcome = "not_visible"
	OutcomeMalformed  Outcome = "malformed"
)

// Receipt is the audit trail of a payment provider delivery
type Receipt struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider          string    `gorm:"type:varchar(32);index" json:"provider"`
	EventType         string    `gorm:"type:varchar(64)" json:"event_type"`
	ProviderReference string    `gorm:"type:varchar(255);index" json:"provider_reference,omitempty"`
	EscrowID          string    `gorm:"type:varchar(64);index" json:"escrow_id,omitempty"`
	RawBodySHA256     string    `gorm:"type:varchar(64);not null" json:"raw_body_sha256"`
	SignatureValid    bool      `gorm:"not null" json:"signature_valid"`
	Outcome           Outcome   `gorm:"size:20;not null" json:"outcome"`
	ReceivedAt        time.Time `gorm:"not null" json:"received_at"`
}

func (Receipt) TableName() string {
	return "webhook_receipts"
}
