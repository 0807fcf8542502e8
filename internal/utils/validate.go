package utils

import "regexp"

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// IsHexAddress reports whether s is a 0x-prefixed 20-byte hex address.
// Checksum casing is not enforced.
func IsHexAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex transaction hash.
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}
