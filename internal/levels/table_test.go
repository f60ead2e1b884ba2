package levels

import (
	"errors"
	"testing"

	"risk-systemv1/internal/pricefmt"
)

func mustPrices(t *testing.T, ss ...string) []pricefmt.Price {
	t.Helper()
	out := make([]pricefmt.Price, len(ss))
	for i, s := range ss {
		p, err := pricefmt.Decode(s)
		if err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		out[i] = p
	}
	return out
}

func TestNewRejectsBadTables(t *testing.T) {
	var ce *ConfigurationError

	if _, err := New(nil); err == nil || !errors.As(err, &ce) {
		t.Errorf("empty table: got %v, want *ConfigurationError", err)
	}
	if _, err := New(mustPrices(t, "111'00", "110'00")); err == nil || !errors.As(err, &ce) {
		t.Errorf("unsorted table: got %v, want *ConfigurationError", err)
	}
	if _, err := New(mustPrices(t, "110'00", "110'00", "111'00")); err == nil || !errors.As(err, &ce) {
		t.Errorf("duplicate level: got %v, want *ConfigurationError", err)
	}
}

func TestInRangeDirection(t *testing.T) {
	tbl, err := NewFromStrings([]string{"110'00", "110'16", "111'00", "111'16", "112'00"})
	if err != nil {
		t.Fatal(err)
	}

	p := func(s string) pricefmt.Price {
		v, _ := pricefmt.Decode(s)
		return v
	}

	up := tbl.InRange(p("110'08"), p("111'16"))
	wantUp := []pricefmt.Price{p("110'16"), p("111'00"), p("111'16")}
	if len(up) != len(wantUp) {
		t.Fatalf("ascending: got %d levels, want %d", len(up), len(wantUp))
	}
	for i := range up {
		if up[i] != wantUp[i] {
			t.Errorf("ascending[%d] = %s, want %s", i, up[i], wantUp[i])
		}
	}

	down := tbl.InRange(p("111'16"), p("110'08"))
	for i := range down {
		if down[i] != wantUp[len(wantUp)-1-i] {
			t.Errorf("descending[%d] = %s, want %s", i, down[i], wantUp[len(wantUp)-1-i])
		}
	}

	// Bounds are inclusive on both ends.
	exact := tbl.InRange(p("110'16"), p("111'00"))
	if len(exact) != 2 {
		t.Errorf("inclusive bounds: got %d levels, want 2", len(exact))
	}

	if got := tbl.InRange(p("108'00"), p("109'00")); got != nil {
		t.Errorf("empty window: got %v, want nil", got)
	}
}

func TestDefaultZN(t *testing.T) {
	tbl := DefaultZN()
	if tbl.Len() != 38 {
		t.Errorf("DefaultZN has %d levels, want 38", tbl.Len())
	}
	prices := tbl.Prices()
	for i := 1; i < len(prices); i++ {
		if prices[i] <= prices[i-1] {
			t.Fatalf("DefaultZN not strictly ascending at %d", i)
		}
	}
}
