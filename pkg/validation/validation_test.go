package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentlake/pkg/domain-errors"
)

type sample struct {
	Service string `json:"service" validate:"required"`
	Status  string `json:"status" validate:"omitempty,oneof=sent delivered"`
	Name    string `json:"name" validate:"omitempty,notblank"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantMsg string
	}{
		{"missing required uses json name", sample{}, "service is required"},
		{"oneof lists allowed values", sample{Service: "x", Status: "lost"}, "status must be one of [sent delivered]"},
		{"notblank rejects whitespace", sample{Service: "x", Name: "   "}, "name must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.in)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}

	require.NoError(t, Validate(&sample{Service: "chat-bot", Status: "sent"}))
}
