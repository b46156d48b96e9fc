package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an account holder. It is a 20-byte EVM-style address.
type Address = common.Address

// ErrMalformedAddress is returned when an address string is not 20-byte hex.
var ErrMalformedAddress = errors.New("address: malformed")

// ZeroAddress is the all-zero address. It never identifies a real holder.
var ZeroAddress = common.Address{}

// ParseAddress parses a 0x-prefixed (or bare) hex address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	return common.HexToAddress(s), nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressKey returns the canonical storage key for an address.
func AddressKey(a Address) string {
	return a.Hex()
}
