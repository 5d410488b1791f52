package main

import "testing"

func TestFormatTimestampPassesThroughWhenPiped(t *testing.T) {
	orig := stdoutIsTerminal
	stdoutIsTerminal = false
	t.Cleanup(func() { stdoutIsTerminal = orig })

	const stamp = "2026-01-02T03:04:05Z"
	if got := formatTimestamp(stamp); got != stamp {
		t.Fatalf("expected verbatim timestamp, got %s", got)
	}
	if got := formatCount(12345); got != "12345" {
		t.Fatalf("expected plain count, got %s", got)
	}
}

func TestFormatTimestampRelativeOnTerminal(t *testing.T) {
	orig := stdoutIsTerminal
	stdoutIsTerminal = true
	t.Cleanup(func() { stdoutIsTerminal = orig })

	if got := formatTimestamp("not-a-timestamp"); got != "not-a-timestamp" {
		t.Fatalf("expected unparseable input passed through, got %s", got)
	}
	if got := formatCount(12345); got != "12,345" {
		t.Fatalf("expected grouped count, got %s", got)
	}
}
