// Package types provides common types used across the token ledger.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits of one whole token.
const Decimals = 18

// unit is 10^Decimals, the number of atomic units in one token.
var unit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))

// ErrMalformedAmount is returned when an amount string cannot be parsed.
var ErrMalformedAmount = errors.New("amount: malformed")

// Amount is a non-negative token quantity in atomic units.
// All arithmetic is unsigned 256-bit integer arithmetic with explicit
// overflow and underflow reporting. There is no floating point.
//
// Examples:
//   - Tokens(1)          = 1 token (10^18 atomic units)
//   - AtomicUnits(5)     = 5 atomic units
//   - MustParse("0.5")   = half a token
type Amount struct {
	v uint256.Int
}

// Constructors

// AtomicUnits creates an Amount from a raw atomic-unit count.
func AtomicUnits(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Tokens creates an Amount of n whole tokens.
func Tokens(n uint64) Amount {
	var a Amount
	a.v.Mul(uint256.NewInt(n), unit)
	return a
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// MaxAmount returns the largest representable Amount.
func MaxAmount() Amount {
	var a Amount
	a.v.SetAllOne()
	return a
}

// FromAtomic parses a base-10 atomic-unit string such as "1500000000000000000".
func FromAtomic(s string) (Amount, error) {
	if s == "" {
		return Zero(), nil
	}
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Zero(), fmt.Errorf("%w: %q: %v", ErrMalformedAmount, s, err)
	}
	return a, nil
}

// Parse parses a whole-token decimal string such as "2.1" or "0.0001".
// At most Decimals fractional digits are accepted.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), fmt.Errorf("%w: empty string", ErrMalformedAmount)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return Zero(), fmt.Errorf("%w: %q has more than %d decimals", ErrMalformedAmount, s, Decimals)
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return Zero(), fmt.Errorf("%w: %q", ErrMalformedAmount, s)
		}
	}

	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", Decimals-len(frac)), "0")
	if digits == "" {
		return Zero(), nil
	}
	return FromAtomic(digits)
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Arithmetic operations

// Add returns a+other and reports whether the sum overflowed.
func (a Amount) Add(other Amount) (Amount, bool) {
	var r Amount
	_, overflow := r.v.AddOverflow(&a.v, &other.v)
	return r, overflow
}

// Sub returns a-other and reports whether the difference underflowed.
func (a Amount) Sub(other Amount) (Amount, bool) {
	var r Amount
	_, underflow := r.v.SubOverflow(&a.v, &other.v)
	return r, underflow
}

// SaturatingSub returns a-other, or zero when other exceeds a.
func (a Amount) SaturatingSub(other Amount) Amount {
	if a.LessThan(other) {
		return Zero()
	}
	r, _ := a.Sub(other)
	return r
}

// MulBps returns floor(a * bps / 10000) and reports overflow.
func (a Amount) MulBps(bps uint64) (Amount, bool) {
	var r Amount
	_, overflow := r.v.MulDivOverflow(&a.v, uint256.NewInt(bps), uint256.NewInt(10_000))
	return r, overflow
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return !a.v.IsZero() }

// Cmp compares a and other and returns -1, 0 or +1.
func (a Amount) Cmp(other Amount) int { return a.v.Cmp(&other.v) }

// Equal returns true if both amounts are equal.
func (a Amount) Equal(other Amount) bool { return a.v.Eq(&other.v) }

// LessThan returns true if a < other.
func (a Amount) LessThan(other Amount) bool { return a.v.Lt(&other.v) }

// GreaterThan returns true if a > other.
func (a Amount) GreaterThan(other Amount) bool { return a.v.Gt(&other.v) }

// Min returns the smaller of two amounts.
func (a Amount) Min(other Amount) Amount {
	if a.LessThan(other) {
		return a
	}
	return other
}

// Formatting methods

// Atomic returns the base-10 atomic-unit representation used for storage.
func (a Amount) Atomic() string { return a.v.Dec() }

// String returns the whole-token representation, e.g. "1.0", "2.1", "0.0001".
func (a Amount) String() string {
	digits := a.v.Dec()
	if len(digits) <= Decimals {
		digits = strings.Repeat("0", Decimals-len(digits)+1) + digits
	}

	whole := digits[:len(digits)-Decimals]
	frac := strings.TrimRight(digits[len(digits)-Decimals:], "0")
	if frac == "" {
		frac = "0"
	}
	return whole + "." + frac
}

// Float64 returns an approximate whole-token value. Use it for metrics only.
func (a Amount) Float64() float64 {
	return a.v.Float64() / 1e18
}

// MarshalText implements encoding.TextMarshaler using the atomic representation.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := FromAtomic(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum adds all values and reports whether any partial sum overflowed.
func Sum(values ...Amount) (Amount, bool) {
	var total Amount
	for _, v := range values {
		var overflow bool
		total, overflow = total.Add(v)
		if overflow {
			return Zero(), true
		}
	}
	return total, false
}
