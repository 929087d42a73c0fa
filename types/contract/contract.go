package contract

import (
	"encoding/base64"
	"fmt"

	"github.com/jibzus/bluefleet-sub001/types"
)

// SignRequest is the body of POST /api/contracts/:id/sign. An empty blob is
// rejected by the service so that authorization is checked first.
type SignRequest struct {
	Role          string `json:"role" validate:"omitempty,oneof=owner operator"`
	SignatureBlob string `json:"signature_blob" validate:"omitempty,base64"`
	ContentType   string `json:"content_type" validate:"omitempty,max=100"`
}

func (r SignRequest) Validate() error {
	return types.ValidateStruct(r)
}

func (r SignRequest) Blob() ([]byte, error) {
	return decodeBlob(r.SignatureBlob)
}

// VerifyRequest is the body of POST /api/contracts/:id/signatures/:signerId/verify
type VerifyRequest struct {
	SignatureBlob string `json:"signature_blob" validate:"required,base64"`
}

func (r VerifyRequest) Validate() error {
	return types.ValidateStruct(r)
}

func (r VerifyRequest) Blob() ([]byte, error) {
	return decodeBlob(r.SignatureBlob)
}

func decodeBlob(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature_blob must be base64 encoded")
	}
	return b, nil
}
