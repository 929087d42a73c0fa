package escrow

import "github.com/jibzus/bluefleet-sub001/types"

type ReleaseRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

func (r ReleaseRequest) Validate() error {
	return types.ValidateStruct(r)
}

type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (r DisputeRequest) Validate() error {
	return types.ValidateStruct(r)
}
