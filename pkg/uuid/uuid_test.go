package uuid

import (
	"strings"
	"testing"
)

func TestNew_VersionAndVariant(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u[6]>>4 != 4 {
		t.Fatalf("expected version 4, got %d", u[6]>>4)
	}
	if u[8]&0xc0 != 0x80 {
		t.Fatalf("expected RFC 4122 variant, got %08b", u[8])
	}
}

func TestParse_RoundTrip(t *testing.T) {
	u := MustNew()
	parsed, err := Parse(u.String())
	if err != nil {
		t.Fatalf("parse own output: %v", err)
	}
	if parsed != u {
		t.Fatalf("round trip mismatch: %s vs %s", parsed, u)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "not-a-uuid", strings.Repeat("a", 36)} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestString_Canonical(t *testing.T) {
	u := MustNew()
	s := u.String()
	if len(s) != 36 {
		t.Fatalf("expected 36 chars, got %d", len(s))
	}
	for _, i := range []int{8, 13, 18, 23} {
		if s[i] != '-' {
			t.Fatalf("expected dash at %d in %s", i, s)
		}
	}
}
