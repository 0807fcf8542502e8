package txflow

import (
	"fmt"
	"regexp"
	"strings"
)

// Category buckets a failure into the fixed taxonomy surfaced to callers.
type Category string

const (
	CategoryUserRejected      Category = "user_rejected"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryNetworkError      Category = "network_error"
	CategoryContractReverted  Category = "contract_reverted"
	CategoryGasError          Category = "gas_error"
	CategoryInvalidAddress    Category = "invalid_address"
	CategoryInvalidAmount     Category = "invalid_amount"
	CategoryNonceError        Category = "nonce_error"
	CategoryUnsupported       Category = "unsupported_operation"
	CategoryUnknown           Category = "unknown"
)

var revertReasonPattern = regexp.MustCompile(`reason="([^"]*)"`)

// Classify maps an arbitrary failure to a category and a single
// human-readable sentence via case-insensitive substring matching.
//
// The rules run in a fixed priority order and the first match wins. The
// ordering is intentionally fragile in one known way: a revert reason that
// happens to contain "network" classifies as a network error because the
// network rule runs before the revert rule. Tests pin this ordering; do not
// reorder the cases without updating them.
func Classify(err error) (Category, string) {
	if err == nil {
		return CategoryUnknown, "An unexpected error occurred."
	}

	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "user rejected", "user denied", "user cancelled"):
		return CategoryUserRejected, "Transaction was rejected in the wallet."

	case containsAny(lower, "insufficient funds", "insufficient balance"):
		return CategoryInsufficientFunds, "Insufficient funds to cover this transaction."

	case containsAny(lower, "network", "timeout", "fetch"):
		return CategoryNetworkError, "Network error. Check your connection and try again."

	case containsAny(lower, "revert", "execution reverted"):
		if match := revertReasonPattern.FindStringSubmatch(message); match != nil {
			return CategoryContractReverted, fmt.Sprintf("Transaction reverted: %s", match[1])
		}
		return CategoryContractReverted, "Transaction reverted on chain."

	case strings.Contains(lower, "gas"):
		return CategoryGasError, "Gas estimation failed. The transaction may not go through."

	case strings.Contains(lower, "invalid address"):
		return CategoryInvalidAddress, "The recipient address is invalid."

	case strings.Contains(lower, "nonce"):
		return CategoryNonceError, "Nonce conflict. Wait for pending transactions to settle and retry."

	case containsAny(lower, "watch-only", "unsupported operation"):
		return CategoryUnsupported, "This connection cannot perform that operation."

	case message == "":
		return CategoryUnknown, "An unexpected error occurred."

	default:
		return CategoryUnknown, message
	}
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
