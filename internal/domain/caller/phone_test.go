package caller

import (
	"testing"

	"orpheus/pkg/errors"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"e164 passthrough", "+14155550101", "+14155550101"},
		{"us formatting", "+1 (415) 555-0101", "+14155550101"},
		{"missing plus", "14155550101", "+14155550101"},
		{"dotted", "415.555.0101", "+4155550101"},
		{"short local", "5550101", "+5550101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhoneRejectsGarbage(t *testing.T) {
	for _, input := range []string{
		"",
		"555010",           // too short
		"1234567890123456", // too long
		"+1415555o101",     // letter smuggled in
		"sip:alice@example.com",
	} {
		if _, err := NormalizePhone(input); !errors.Is(err, errors.ErrInvalidInput) {
			t.Fatalf("NormalizePhone(%q) err = %v, want ErrInvalidInput", input, err)
		}
	}
}

func TestHashPhoneIsDeterministic(t *testing.T) {
	a, err := NormalizePhone("+1 (415) 555-0101")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NormalizePhone("14155550101")
	if err != nil {
		t.Fatal(err)
	}

	if HashPhone(a) != HashPhone(b) {
		t.Fatal("equivalent numbers must hash to the same key")
	}
	if len(HashPhone(a)) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(HashPhone(a)))
	}
}
