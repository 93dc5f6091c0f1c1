package redact

import (
	"fmt"
	"strings"
	"testing"
)

func TestPIIMasksContactAndCardData(t *testing.T) {
	in := "write to ana@example.com, call +1 (555) 123-9876, card 4242 4242 4242 4242"
	got := PII(in)
	for _, marker := range []string{"[email]", "[phone]", "[card]"} {
		if !strings.Contains(got, marker) {
			t.Fatalf("PII(%q) = %q, missing %s", in, got, marker)
		}
	}
	for _, leaked := range []string{"ana@example.com", "123-9876", "4242 4242"} {
		if strings.Contains(got, leaked) {
			t.Fatalf("PII(%q) = %q, still contains %q", in, got, leaked)
		}
	}
}

func TestPIILeavesOrdinarySpeech(t *testing.T) {
	in := "see you at 10 on the 3rd floor"
	if got := PII(in); got != in {
		t.Fatalf("PII(%q) = %q, want unchanged", in, got)
	}
}

func TestValueFormatsMasked(t *testing.T) {
	v := Value("mail bob@example.org")
	if got := fmt.Sprint(v); got != "mail [email]" {
		t.Fatalf("fmt.Sprint(Value) = %q, want %q", got, "mail [email]")
	}
	b, err := v.MarshalText()
	if err != nil || string(b) != "mail [email]" {
		t.Fatalf("MarshalText() = %q, %v", b, err)
	}
}
