package order

import (
	"regexp"
	"testing"
)

var numberPattern = regexp.MustCompile(`^ORD-[0-9A-F]{8}$`)

func TestNewNumberFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := NewNumber()
		if !numberPattern.MatchString(n) {
			t.Fatalf("order number %q does not match ORD-XXXXXXXX", n)
		}
	}
}

func TestNewNumberSpread(t *testing.T) {
	seen := make(map[string]struct{}, 10_000)
	for i := 0; i < 10_000; i++ {
		seen[NewNumber()] = struct{}{}
	}
	// 8 hex chars give ~4.3e9 values; 10k draws should be nearly all
	// distinct. Tolerate a handful of birthday collisions.
	if len(seen) < 9_990 {
		t.Fatalf("expected close to 10000 distinct numbers, got %d", len(seen))
	}
}
