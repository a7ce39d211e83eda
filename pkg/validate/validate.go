// Package validate decides whether free-text field input is a usable
// address or token amount. Parse functions return the reason for a
// rejection; the Validate variants drop it for UI flags.
package validate

import (
	"fmt"

	"starkdemo/pkg/felt"
)

// Address parses text as a 0x-prefixed hex felt.
func Address(text string) (felt.Felt, error) {
	f, err := felt.FromHex(text)
	if err != nil {
		return felt.Zero, fmt.Errorf("invalid address %q: %w", text, err)
	}
	return f, nil
}

// Amount parses text as a non-negative base-10 integer below 2^256.
func Amount(text string) (felt.Uint256, error) {
	u, err := felt.Uint256FromDecimal(text)
	if err != nil {
		return felt.Uint256{}, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	return u, nil
}

func ValidateAddress(text string) bool {
	_, err := Address(text)
	return err == nil
}

func ValidateAmount(text string) bool {
	_, err := Amount(text)
	return err == nil
}
