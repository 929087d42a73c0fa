package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `json:"name" validate:"required"`
	Status string `json:"status" validate:"omitempty,oneof=A B"`
	Count  int    `json:"count" validate:"omitempty,max=3"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "x", Status: "A"}))

	err := ValidateStruct(sample{Status: "C", Count: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name is required")
	assert.Contains(t, err.Error(), "Status must be one of [A B]")
	assert.Contains(t, err.Error(), "Count must be at most 3")
}
