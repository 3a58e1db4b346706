package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// CanonicalCode
// ---------------------------------------------------------------------------

func TestCanonicalCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2330", "2330"},
		{"2330.TW", "2330"},
		{"2330.tw", "2330"},
		{"6488.TWO", "6488"},
		{"  2317.TW ", "2317"},
		{"aapl", "AAPL"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalCode(tt.in), "input %q", tt.in)
	}
}

func TestCanonicalCode_SuffixOnlyStrippedOnce(t *testing.T) {
	// A code that legitimately ends in TW without the dot must survive.
	assert.Equal(t, "TW", CanonicalCode("TW"))
}

// ---------------------------------------------------------------------------
// ComputeROI
// ---------------------------------------------------------------------------

func TestComputeROI(t *testing.T) {
	roi := ComputeROI(decimal.NewFromInt(100), decimal.NewFromInt(110))
	assert.True(t, roi.Equal(decimal.NewFromInt(10)), "got %s", roi)

	roi = ComputeROI(decimal.NewFromInt(200), decimal.NewFromInt(150))
	assert.True(t, roi.Equal(decimal.NewFromInt(-25)), "got %s", roi)
}

func TestComputeROI_ZeroEntryIsZero(t *testing.T) {
	roi := ComputeROI(decimal.Zero, decimal.NewFromInt(500))
	assert.True(t, roi.IsZero())
}
