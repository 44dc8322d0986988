// Package utils holds request-level validation helpers shared by the HTTP
// handlers.
package utils

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	// Address regex pattern (basic Ethereum address format)
	addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	// Amount regex pattern (positive number, can include decimals)
	amountRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

	// Bytes32 regex pattern (intent ids and message ids)
	bytes32Regex = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// ValidateAddress validates an Ethereum address
func ValidateAddress(address string) error {
	if address == "" {
		return errors.New("address cannot be empty")
	}
	if !addressRegex.MatchString(address) {
		return errors.Errorf("invalid Ethereum address format: %s", address)
	}
	return nil
}

// ValidateBytes32 validates a 32-byte hex identifier.
func ValidateBytes32(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if !bytes32Regex.MatchString(id) {
		return errors.Errorf("invalid id format: %s", id)
	}
	return nil
}

// ValidateChain checks if a chain is among the configured set.
func ValidateChain(chainID uint64, configured map[uint64]bool) error {
	if len(configured) == 0 {
		return errors.New("no supported chains configured")
	}
	if !configured[chainID] {
		return errors.Errorf("unsupported chain ID: %d", chainID)
	}
	return nil
}

// ValidateAmount checks if the amount is valid and within limits
func ValidateAmount(amount string) error {
	if amount == "" {
		return errors.New("amount cannot be empty")
	}

	amount = strings.TrimSpace(amount)

	if !amountRegex.MatchString(amount) {
		return errors.New("invalid amount format")
	}

	// Decimal values only need to parse as a valid float.
	if strings.Contains(amount, ".") {
		if _, ok := new(big.Float).SetString(amount); !ok {
			return errors.New("invalid amount format")
		}
		return nil
	}

	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return errors.New("invalid amount format")
	}

	if value.Sign() < 0 {
		return errors.New("amount must be positive")
	}

	// Cap at 1 billion tokens of 18 decimals.
	maxAmount := new(big.Int).Mul(
		new(big.Int).SetInt64(1_000_000_000),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	)
	if value.Cmp(maxAmount) > 0 {
		return errors.New("amount exceeds maximum limit")
	}

	return nil
}
