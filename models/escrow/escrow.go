package escrow

import (
	"time"
)

// EscrowStatus moves strictly forward: PENDING -> FUNDED -> RELEASED
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "PENDING"
	EscrowStatusFunded   EscrowStatus = "FUNDED"
	EscrowStatusReleased EscrowStatus = "RELEASED"
)

// IsFundedOrLater is true once an authoritative payment confirmation was applied
func (s EscrowStatus) IsFundedOrLater() bool {
	return s == EscrowStatusFunded || s == EscrowStatusReleased
}

// EventType names the entries of the escrow log
type EventType string

const (
	EventFunded   EventType = "funded"
	EventReleased EventType = "released"
	EventDisputed EventType = "disputed"
)

// Escrow holds the charter payment for one booking
type Escrow struct {
	ID         string       `gorm:"type:varchar(64);primaryKey" json:"id"`
	BookingID  string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"booking_id"`
	ContractID string       `gorm:"type:varchar(64);not null" json:"contract_id"`
	Status     EscrowStatus `gorm:"size:20;not null;index" json:"status"`

	AmountMinor      *int64 `gorm:"" json:"amount_minor,omitempty"`
	PlatformFeeMinor *int64 `gorm:"" json:"platform_fee_minor,omitempty"`
	Currency         string `gorm:"type:varchar(3)" json:"currency,omitempty"`
	ConfigVersion    string `gorm:"type:varchar(32);not null" json:"config_version"`

	Provider          string     `gorm:"type:varchar(32)" json:"provider,omitempty"`
	ProviderReference string     `gorm:"type:varchar(255)" json:"provider_reference,omitempty"`
	FundedAt          *time.Time `gorm:"" json:"funded_at,omitempty"`
	ReleasedAt        *time.Time `gorm:"" json:"released_at,omitempty"`
	ReleasedBy        string     `gorm:"type:varchar(64)" json:"released_by,omitempty"`

	Events []Event `gorm:"foreignKey:EscrowID" json:"events"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Escrow) TableName() string {
	return "escrows"
}

// Event is one immutable entry of the escrow log
type Event struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EscrowID          string    `gorm:"type:varchar(64);not null;index" json:"escrow_id"`
	Type              EventType `gorm:"size:20;not null" json:"type"`
	ActorID           string    `gorm:"type:varchar(64)" json:"actor_id,omitempty"`
	Provider          string    `gorm:"type:varchar(32)" json:"provider,omitempty"`
	ProviderReference string    `gorm:"type:varchar(255)" json:"provider_reference,omitempty"`
	Reason            string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string {
	return "escrow_events"
}
