package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHexAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"lowercase address", "0x1234567890123456789012345678901234567890", true},
		{"mixed case address", "0xAbCdEf1234567890123456789012345678901234", true},
		{"missing prefix", "1234567890123456789012345678901234567890", false},
		{"too short", "0x12345678901234567890123456789012345678", false},
		{"too long", "0x123456789012345678901234567890123456789012", false},
		{"non-hex character", "0x123456789012345678901234567890123456789g", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsHexAddress(tt.input))
		})
	}
}

func TestIsTxHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid hash", "0x" + "aa11" + "aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11", true},
		{"forty hex chars is not a hash", "0x1234567890123456789012345678901234567890", false},
		{"non-hex character", "0x" + "zz11" + "aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsTxHash(tt.input))
		})
	}
}
