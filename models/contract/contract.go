package contract

import (
	"time"
)

// ContractStatus is the signature state of a contract
type ContractStatus string

const (
	ContractStatusAwaitingSignatures ContractStatus = "AWAITING_SIGNATURES"
	ContractStatusFullySigned        ContractStatus = "FULLY_SIGNED"
)

// SignerRole is the relationship a signer holds to the booking
type SignerRole string

const (
	SignerRoleOwner    SignerRole = "owner"
	SignerRoleOperator SignerRole = "operator"
)

func (r SignerRole) IsValid() bool {
	return r == SignerRoleOwner || r == SignerRoleOperator
}

// Contract binds owner and operator to an accepted booking
type Contract struct {
	ID         string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	BookingID  string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"booking_id"`
	OwnerID    string         `gorm:"type:varchar(64);not null" json:"owner_id"`
	OperatorID string         `gorm:"type:varchar(64);not null" json:"operator_id"`
	Status     ContractStatus `gorm:"size:30;not null" json:"status"`
	SignedAt   *time.Time     `gorm:"" json:"signed_at,omitempty"`
	EscrowID   *string        `gorm:"type:varchar(64)" json:"escrow_id,omitempty"`

	Signatures []Signature `gorm:"foreignKey:ContractID" json:"signatures"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

// SignerIDs returns the ids of everyone who has signed, in signing order
func (c Contract) SignerIDs() []string {
	ids := make([]string, 0, len(c.Signatures))
	for _, s := range c.Signatures {
		ids = append(ids, s.SignerID)
	}
	return ids
}

// HasSigned reports whether actorID already appears among the signers
func (c Contract) HasSigned(actorID string) bool {
	for _, s := range c.Signatures {
		if s.SignerID == actorID {
			return true
		}
	}
	return false
}

// IsExecuted reports whether both required parties have signed
func (c Contract) IsExecuted() bool {
	return c.HasSigned(c.OwnerID) && c.HasSigned(c.OperatorID)
}

// Signature references a stored signature image by location and content hash.
// Raw bytes are never persisted here.
type Signature struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractID  string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_contract_signer" json:"contract_id"`
	SignerID    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_contract_signer" json:"signer_id"`
	Role        SignerRole `gorm:"size:20;not null" json:"role"`
	DocumentURL string     `gorm:"type:text;not null" json:"document_url"`
	ContentHash string     `gorm:"type:varchar(128);not null" json:"content_hash"`
	SignedAt    time.Time  `gorm:"not null" json:"signed_at"`
}

func (Signature) TableName() string {
	return "contract_signatures"
}
