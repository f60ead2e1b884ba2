package pricefmt

import (
	"errors"
	"testing"
)

func TestDecodeValues(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"111'08", 111.25},
		{"111'08+", 111.265625},
		{"110'00", 110.0},
		{"110-20", 110.625},
		{"110 31+", 110.984375},
		{"108'15", 108.46875},
		{"0'01", 0.03125},
		{"  111'08  ", 111.25}, // surrounding whitespace tolerated
	}
	for _, c := range cases {
		p, err := Decode(c.in)
		if err != nil {
			t.Fatalf("Decode(%q): unexpected error %v", c.in, err)
		}
		if p.Decimal() != c.want {
			t.Errorf("Decode(%q) = %v, want %v", c.in, p.Decimal(), c.want)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	bad := []string{
		"",
		"111",
		"111'8",    // one-digit 32nds
		"111'32",   // 32nds out of range
		"111'99",   // 32nds out of range
		"111'08++", // double half flag
		"111'085",  // ladder notation, not tick notation
		"abc",
		"111'0a",
		"-111'08",
	}
	for _, s := range bad {
		if _, err := Decode(s); err == nil {
			t.Errorf("Decode(%q): expected error, got none", s)
		} else {
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("Decode(%q): error is %T, want *FormatError", s, err)
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	// encode(decode(s)) must reproduce the canonical form of every valid s.
	cases := []struct {
		in        string
		canonical string
	}{
		{"111'08", "111'08"},
		{"111'08+", "111'08+"},
		{"110-20", "110'20"},
		{"110 31+", "110'31+"},
		{"108'00", "108'00"},
	}
	for _, c := range cases {
		p, err := Decode(c.in)
		if err != nil {
			t.Fatalf("Decode(%q): %v", c.in, err)
		}
		if got := p.String(); got != c.canonical {
			t.Errorf("Decode(%q).String() = %q, want %q", c.in, got, c.canonical)
		}
	}
}

func TestFromDecimalNoise(t *testing.T) {
	// Values carrying float noise must still land on the intended half tick.
	cases := []struct {
		in   float64
		want string
	}{
		{110.2656249999, "110'08+"},
		{110.0156250001, "110'00+"},
		{109.9999999999, "110'00"},
		{111.25, "111'08"},
	}
	for _, c := range cases {
		if got := FromDecimal(c.in).String(); got != c.want {
			t.Errorf("FromDecimal(%v).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeLadder(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"110'08", 110.25},
		{"110'085", 110.265625},  // 8.5/32
		{"110'0875", 110.2734375}, // 8.75/32
		{"110'090", 110.28125},    // 9.0/32, trailing zero form
		{"111'005", 111.015625},
	}
	for _, c := range cases {
		p, err := DecodeLadder(c.in)
		if err != nil {
			t.Fatalf("DecodeLadder(%q): %v", c.in, err)
		}
		if p.Decimal() != c.want {
			t.Errorf("DecodeLadder(%q) = %v, want %v", c.in, p.Decimal(), c.want)
		}
	}
}

func TestDecodeLadderRejects(t *testing.T) {
	bad := []string{"110'8", "110'32", "110'32075", "110-08", "110'08+", ""}
	for _, s := range bad {
		if _, err := DecodeLadder(s); err == nil {
			t.Errorf("DecodeLadder(%q): expected error, got none", s)
		}
	}
}

func TestNotationsNotInterchangeable(t *testing.T) {
	// "110'085" is 8.5 ticks in ladder notation but invalid tick notation.
	if _, err := Decode("110'085"); err == nil {
		t.Error("Decode accepted a ladder-notation price")
	}
	// "110'08+" is valid tick notation but invalid ladder notation.
	if _, err := DecodeLadder("110'08+"); err == nil {
		t.Error("DecodeLadder accepted a tick-notation price")
	}
}

func TestSixteenths(t *testing.T) {
	a, _ := Decode("111'08")
	b, _ := Decode("111'00")
	if got := (a - b).Sixteenths(); got != 4.0 {
		t.Errorf("quarter point = %v sixteenths, want 4", got)
	}
}
