// Package capability resolves what an actor may do with a particular booking.
// Every lifecycle component asks here instead of comparing ids itself.
package capability

import (
	"github.com/jibzus/bluefleet-sub001/constants"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
)

// Actor is the authenticated caller
type Actor struct {
	ID          string
	Permissions map[string]bool
}

func NewActor(id string, permissions ...string) Actor {
	set := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		set[p] = true
	}
	return Actor{ID: id, Permissions: set}
}

func (a Actor) Has(permission string) bool {
	return a.Permissions[permission]
}

func (a Actor) HasAny(permissions ...string) bool {
	for _, p := range permissions {
		if a.Has(p) {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.HasAny(constants.AdminPermissions...)
}

// Capabilities is the actor's standing on one booking
type Capabilities struct {
	IsOwner    bool
	IsOperator bool
	IsAdmin    bool
}

// Resolve computes standing from the two party ids of a booking
func Resolve(actor Actor, ownerID, operatorID string) Capabilities {
	return Capabilities{
		IsOwner:    actor.ID != "" && actor.ID == ownerID,
		IsOperator: actor.ID != "" && actor.ID == operatorID,
		IsAdmin:    actor.IsAdmin(),
	}
}

func ForBooking(actor Actor, b *booking.Booking) Capabilities {
	return Resolve(actor, b.OwnerID, b.OperatorID)
}

func ForContract(actor Actor, c *contract.Contract) Capabilities {
	return Resolve(actor, c.OwnerID, c.OperatorID)
}

// IsParty is true for the owner or the operator
func (c Capabilities) IsParty() bool {
	return c.IsOwner || c.IsOperator
}

// CanView covers parties and administrators
func (c Capabilities) CanView() bool {
	return c.IsParty() || c.IsAdmin
}

// Role is the signer role the actor holds, empty when they are not a party
func (c Capabilities) Role() contract.SignerRole {
	switch {
	case c.IsOwner:
		return contract.SignerRoleOwner
	case c.IsOperator:
		return contract.SignerRoleOperator
	default:
		return ""
	}
}
