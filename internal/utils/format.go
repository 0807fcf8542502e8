package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Default head/tail lengths for shortened addresses.
const (
	AddressHeadLen = 6
	AddressTailLen = 4
)

// FormatAddress truncates an address for display purposes. Inputs shorter
// than head+tail are returned unchanged; an empty input yields an empty string.
func FormatAddress(address string, head, tail int) string {
	if len(address) <= head+tail {
		return address
	}

	return address[:head] + "..." + address[len(address)-tail:]
}

// ShortAddress formats an address with the default 6/4 truncation.
func ShortAddress(address string) string {
	return FormatAddress(address, AddressHeadLen, AddressTailLen)
}

// FormatTxHash formats a transaction hash for display.
func FormatTxHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-8:]
}

// ParseUnits converts a decimal display string to an integer count of base
// units given a decimals exponent. Any parse failure, negative value, or
// empty input returns zero rather than an error; callers must reject a zero
// amount independently before submission.
func ParseUnits(s string, decimals int) *big.Int {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return new(big.Int)
	}

	return d.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FormatUnits converts a base-unit amount back to a decimal display string.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}

	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// FormatBalance formats a base-unit amount with its symbol.
func FormatBalance(amount *big.Int, symbol string, decimals int) string {
	if amount == nil {
		return fmt.Sprintf("0 %s", symbol)
	}

	return fmt.Sprintf("%s %s", FormatUnits(amount, decimals), symbol)
}

// FormatGwei formats a wei amount in Gwei for gas displays.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "0 Gwei"
	}

	gwei := decimal.NewFromBigInt(wei, -9)
	return fmt.Sprintf("%s Gwei", gwei.StringFixed(2))
}

// TruncateString truncates a string to a maximum length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return s[:maxLen]
	}

	return s[:maxLen-3] + "..."
}
