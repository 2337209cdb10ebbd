package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := New(false).Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
	var nilRedactor *Redactor
	if got := nilRedactor.Text(in); got != in {
		t.Fatalf("nil redactor must pass text through, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	in := "email a@b.com and phone +62 812 3456 7890"
	got := New(true).Text(in)
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in %q", want, got)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in %q", want, got)
	}
}

func TestRedactSpokenDigits(t *testing.T) {
	in := "my number is four one five five five five one two three four thanks"
	got := New(true).Text(in)
	if got != "my number is [REDACTED_NUMBER] thanks" {
		t.Fatalf("unexpected redaction %q", got)
	}
	short := "one two three go"
	if got := New(true).Text(short); got != short {
		t.Fatalf("short counts must stay, got %q", got)
	}
}
