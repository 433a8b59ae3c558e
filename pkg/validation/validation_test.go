package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "purchasegate/pkg/domain-errors"
)

type sample struct {
	PackID   string   `json:"pack_id" validate:"required,uuid"`
	Amount   int64    `json:"amount" validate:"gt=0"`
	Currency string   `json:"currency" validate:"currency"`
	Decision string   `json:"decision" validate:"oneof=approve deny"`
	Token    string   `json:"payment_method_token" validate:"paytoken"`
	Tags     []string `json:"allowed_categories" validate:"dive,category"`
	Note     string   `validate:"omitempty,notblank"`
}

func valid() sample {
	return sample{
		PackID:   "550e8400-e29b-41d4-a716-446655440001",
		Amount:   499,
		Currency: "USD",
		Decision: "approve",
		Token:    "tok_visa_4242",
		Tags:     []string{"stickers", "bedtime-stories"},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*sample)
		msg    string
	}{
		{"missing pack", func(s *sample) { s.PackID = "" }, "pack_id is required"},
		{"bad uuid", func(s *sample) { s.PackID = "x" }, "pack_id must be a valid uuid"},
		{"zero amount", func(s *sample) { s.Amount = 0 }, "amount must be greater than 0"},
		{"lowercase currency", func(s *sample) { s.Currency = "usd" }, "currency must be a three-letter currency code"},
		{"bad decision", func(s *sample) { s.Decision = "maybe" }, "decision must be one of [approve deny]"},
		{"token with space", func(s *sample) { s.Token = "tok visa" }, "payment_method_token must be a token of at most 256 printable characters"},
		{"token too long", func(s *sample) { s.Token = strings.Repeat("a", 257) }, "payment_method_token must be a token of at most 256 printable characters"},
		{"category with capitals", func(s *sample) { s.Tags = []string{"Stickers"} }, "allowed_categories[0] must be a lowercase category slug"},
		{"blank note falls back to snake case", func(s *sample) { s.Note = "   " }, "note must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := Validate(req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.EqualError(t, err, tt.msg)
		})
	}
}

func TestErrorMessage_NonValidatorError(t *testing.T) {
	assert.Equal(t, "invalid request body", ErrorMessage(assert.AnError))
}
