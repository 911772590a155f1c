package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUzbekNumber(t *testing.T) {
	t.Parallel()
	v := NewValidator()
	res := v.Validate("90 123 45 67", RegionUzbekistan)
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Equal(t, "+998901234567", res.Canonical)
	assert.Equal(t, "UZ", res.Region)
	assert.Equal(t, "Beeline", res.Operator)
	assert.Empty(t, res.Errors)
}

func TestValidateUzbekOperators(t *testing.T) {
	t.Parallel()
	v := NewValidator()
	tests := []struct {
		raw      string
		operator string
	}{
		{"+998911234567", "Beeline"},
		{"+998931234567", "Ucell"},
		{"+998771234567", "Uzmobile"},
		{"+998551234567", "Uzmobile"},
		{"+998881234567", "Mobiuz"},
		{"+998331234567", "Humans"},
		{"+998201234567", "OQ"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			res := v.Validate(tt.raw, RegionAuto)
			assert.True(t, res.IsValid, "errors: %v", res.Errors)
			assert.Equal(t, tt.operator, res.Operator)
			for _, w := range res.Warnings {
				assert.NotContains(t, w, "unknown operator code")
			}
		})
	}
}

func TestValidateRussianNumber(t *testing.T) {
	t.Parallel()
	v := NewValidator()
	res := v.Validate("8 (916) 123-45-67", RegionRussia)
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Equal(t, "+79161234567", res.Canonical)
	assert.Equal(t, "RU", res.Region)
	assert.True(t, res.Mobile)
}

func TestValidateRegionMismatch(t *testing.T) {
	t.Parallel()
	v := NewValidator()
	res := v.Validate("+79161234567", RegionUzbekistan)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "expected an Uzbek number (+998)")
}

func TestValidateInternational(t *testing.T) {
	t.Parallel()
	v := NewValidator()
	res := v.Validate("+1 415 555 2671", RegionInternational)
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Equal(t, "US", res.Region)
	assert.Equal(t, "+1 415-555-2671", res.Formatted)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	v := NewValidator()
	cases := []struct {
		input, wantErr string
	}{
		{"", "phone number is required"},
		{"   ", "phone number is required"},
		{"12345", "unrecognized phone number format"},
		{"+19995551234", "phone number is not valid"},
	}
	for _, c := range cases {
		res := v.Validate(c.input, RegionAuto)
		assert.False(t, res.IsValid, "input %q", c.input)
		assert.Contains(t, res.Errors, c.wantErr, "input %q", c.input)
	}
}

func TestParseRegion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RegionUzbekistan, ParseRegion("uzbek"))
	assert.Equal(t, RegionRussia, ParseRegion("RU"))
	assert.Equal(t, RegionInternational, ParseRegion("international"))
	assert.Equal(t, RegionAuto, ParseRegion("mars"))
}

func TestInfo(t *testing.T) {
	t.Parallel()
	region, _, ok := Info("+998901234567")
	assert.True(t, ok)
	assert.Equal(t, "UZ", region)

	_, _, ok = Info("garbage")
	assert.False(t, ok)
}
