package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		head     int
		tail     int
		expected string
	}{
		{
			name:     "standard address with defaults",
			address:  "0x1234567890123456789012345678901234567890",
			head:     6,
			tail:     4,
			expected: "0x1234...7890",
		},
		{
			name:     "shorter than head plus tail returns unchanged",
			address:  "0x1234",
			head:     6,
			tail:     4,
			expected: "0x1234",
		},
		{
			name:     "exactly head plus tail returns unchanged",
			address:  "0123456789",
			head:     6,
			tail:     4,
			expected: "0123456789",
		},
		{
			name:     "empty input yields empty string",
			address:  "",
			head:     6,
			tail:     4,
			expected: "",
		},
		{
			name:     "custom head and tail",
			address:  "0x1234567890123456789012345678901234567890",
			head:     10,
			tail:     8,
			expected: "0x12345678...34567890",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAddress(tt.address, tt.head, tt.tail))
		})
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x1234...7890", ShortAddress("0x1234567890123456789012345678901234567890"))
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int
		expected string
	}{
		{"fractional ether", "1.5", 18, "1500000000000000000"},
		{"whole number", "2", 18, "2000000000000000000"},
		{"six decimal token", "10.25", 6, "10250000"},
		{"unparseable returns zero", "abc", 18, "0"},
		{"empty returns zero", "", 18, "0"},
		{"negative returns zero", "-1", 18, "0"},
		{"surrounding whitespace", " 0.001 ", 18, "1000000000000000"},
		{"excess precision truncates", "0.0000000000000000001", 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, ok := new(big.Int).SetString(tt.expected, 10)
			assert.True(t, ok)
			assert.Equal(t, 0, ParseUnits(tt.input, tt.decimals).Cmp(expected))
		})
	}
}

func TestFormatUnits(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, "1.5", FormatUnits(wei, 18))
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "1.5 ETH", FormatBalance(wei, "ETH", 18))
}

func TestFormatGwei(t *testing.T) {
	assert.Equal(t, "25.00 Gwei", FormatGwei(big.NewInt(25_000_000_000)))
	assert.Equal(t, "1.50 Gwei", FormatGwei(big.NewInt(1_500_000_000)))
	assert.Equal(t, "0 Gwei", FormatGwei(nil))
}

func TestFormatTxHash(t *testing.T) {
	hash := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	assert.Equal(t, "0xaaaaaa...aaaaaaaa", FormatTxHash(hash))
	assert.Equal(t, "0xaaaa", FormatTxHash("0xaaaa"))
}
