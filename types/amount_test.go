package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name    string
		amount  Amount
		atomic  string
		display string
	}{
		{"one token", Tokens(1), "1000000000000000000", "1.0"},
		{"five tokens", Tokens(5), "5000000000000000000", "5.0"},
		{"one atomic unit", AtomicUnits(1), "1", "0.000000000000000001"},
		{"zero", Zero(), "0", "0.0"},
		{"parsed fraction", MustParse("2.1"), "2100000000000000000", "2.1"},
		{"parsed small", MustParse("0.0001"), "100000000000000", "0.0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.Atomic(); got != tt.atomic {
				t.Errorf("Atomic: got %s, want %s", got, tt.atomic)
			}
			if got := tt.amount.String(); got != tt.display {
				t.Errorf("Display: got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Amount
		wantErr bool
	}{
		{"1", Tokens(1), false},
		{"1.", Tokens(1), false},
		{".5", MustParse("0.5"), false},
		{"  3.0  ", Tokens(3), false},
		{"0", Zero(), false},
		{"0.000000000000000001", AtomicUnits(1), false},
		{"0.0000000000000000001", Zero(), true},
		{"", Zero(), true},
		{"-1", Zero(), true},
		{"1.2.3", Zero(), true},
		{"abc", Zero(), true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedAmount) {
					t.Fatalf("expected ErrMalformedAmount, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() (Amount, bool)
		expected Amount
		flagged  bool
	}{
		{"Add", func() (Amount, bool) { return Tokens(1).Add(Tokens(2)) }, Tokens(3), false},
		{"Sub", func() (Amount, bool) { return Tokens(5).Sub(Tokens(2)) }, Tokens(3), false},
		{"Add overflow", func() (Amount, bool) { return MaxAmount().Add(AtomicUnits(1)) }, Zero(), true},
		{"Sub underflow", func() (Amount, bool) { return AtomicUnits(1).Sub(AtomicUnits(2)) }, MaxAmount(), true},
		{"MulBps quarter", func() (Amount, bool) { return Tokens(1).MulBps(2500) }, MustParse("0.25"), false},
		{"MulBps floors", func() (Amount, bool) { return AtomicUnits(3).MulBps(3333) }, Zero(), false},
		{"MulBps zero bps", func() (Amount, bool) { return Tokens(7).MulBps(0) }, Zero(), false},
		{"Sum", func() (Amount, bool) { return Sum(Tokens(1), Tokens(2), MustParse("0.5")) }, MustParse("3.5"), false},
		{"Sum overflow", func() (Amount, bool) { return Sum(MaxAmount(), Tokens(1)) }, Zero(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, flagged := tt.op()
			if flagged != tt.flagged {
				t.Fatalf("overflow flag: got %v, want %v", flagged, tt.flagged)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("got %s, want %s", got.Atomic(), tt.expected.Atomic())
			}
		})
	}
}

func TestAmountComparison(t *testing.T) {
	a := Tokens(1)
	b := Tokens(2)

	if !a.LessThan(b) {
		t.Error("1 should be less than 2")
	}
	if !b.GreaterThan(a) {
		t.Error("2 should be greater than 1")
	}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(Tokens(1)) != 0 {
		t.Error("Cmp returned unexpected ordering")
	}
	if !a.Min(b).Equal(a) || !b.Min(a).Equal(a) {
		t.Error("Min should return the smaller amount")
	}
	if got := a.SaturatingSub(b); !got.IsZero() {
		t.Errorf("SaturatingSub should clamp at zero, got %s", got)
	}
	if got := b.SaturatingSub(a); !got.Equal(a) {
		t.Errorf("SaturatingSub: got %s, want %s", got, a)
	}
}

func TestAmountPredicates(t *testing.T) {
	if !Zero().IsZero() {
		t.Error("Zero should be zero")
	}
	if Zero().IsPositive() {
		t.Error("Zero should not be positive")
	}
	if !AtomicUnits(1).IsPositive() {
		t.Error("one atomic unit should be positive")
	}
}

func TestAmountFloat64(t *testing.T) {
	if got := MustParse("2.5").Float64(); got != 2.5 {
		t.Errorf("Float64: got %v, want 2.5", got)
	}
	if got := Zero().Float64(); got != 0 {
		t.Errorf("Float64 of zero: got %v", got)
	}
}

func TestAmountJSON(t *testing.T) {
	type payload struct {
		Balance Amount `json:"balance"`
	}

	data, err := json.Marshal(payload{Balance: MustParse("1.5")})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"balance":"1500000000000000000"}`
	if string(data) != expected {
		t.Errorf("Marshal: got %s, want %s", data, expected)
	}

	var decoded payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !decoded.Balance.Equal(MustParse("1.5")) {
		t.Errorf("Unmarshal: got %s, want 1.5", decoded.Balance)
	}

	if err := json.Unmarshal([]byte(`{"balance":"1.5"}`), &decoded); err == nil {
		t.Error("expected error for display-form input")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for malformed amount")
		}
	}()

	_ = MustParse("not-a-number")
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr[19] != 0xaa || addr == ZeroAddress {
		t.Errorf("unexpected address %s", addr)
	}
	again, err := ParseAddress(AddressKey(addr))
	if err != nil || again != addr {
		t.Errorf("key round trip: got %s, %v", again, err)
	}

	for _, bad := range []string{"", "0x1234", "not-an-address"} {
		if _, err := ParseAddress(bad); !errors.Is(err, ErrMalformedAddress) {
			t.Errorf("ParseAddress(%q): expected ErrMalformedAddress, got %v", bad, err)
		}
	}
}

func BenchmarkAmountAdd(b *testing.B) {
	x := Tokens(100)
	y := MustParse("0.5")
	for i := 0; i < b.N; i++ {
		_, _ = x.Add(y)
	}
}

func BenchmarkAmountString(b *testing.B) {
	x := MustParse("12345.6789")
	for i := 0; i < b.N; i++ {
		_ = x.String()
	}
}
