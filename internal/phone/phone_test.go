package phone

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "belarus full code", raw: "375291234567", want: "291234567", ok: true},
		{name: "belarus with plus and spaces", raw: "+375 29 123-45-67", want: "291234567", ok: true},
		{name: "local 80 prefix", raw: "80291234567", want: "291234567", ok: true},
		{name: "russia 7 prefix", raw: "79161234567", want: "9161234567", ok: true},
		{name: "russia 8 prefix", raw: "89161234567", want: "9161234567", ok: true},
		{name: "bare nine digits", raw: "291234567", want: "291234567", ok: true},
		{name: "bare ten digits", raw: "9161234567", want: "9161234567", ok: true},
		{name: "parentheses and dashes", raw: "8 (916) 123-45-67", want: "9161234567", ok: true},
		{name: "too short", raw: "12345", ok: false},
		{name: "too long without known prefix", raw: "1234567890123", ok: false},
		{name: "375 prefix wrong length", raw: "37529123456", ok: false},
		{name: "no digits at all", raw: "call me maybe", ok: false},
		{name: "empty", raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			if ok != tt.ok {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}
