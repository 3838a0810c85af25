package main

import "testing"

func TestRunCLIUnknownCommand(t *testing.T) {
	if code := runCLI([]string{"frobnicate"}); code != 1 {
		t.Fatalf("unknown command exit code = %d, want 1", code)
	}
}

func TestRunCLIHelp(t *testing.T) {
	for _, args := range [][]string{{"help"}, {"--help"}, {"-h"}} {
		if code := runCLI(args); code != 0 {
			t.Fatalf("%v exit code = %d, want 0", args, code)
		}
	}
}

func TestRunCLIVersion(t *testing.T) {
	if code := runCLI([]string{"version"}); code != 0 {
		t.Fatalf("version exit code = %d, want 0", code)
	}
	if code := runCLI([]string{"--version"}); code != 0 {
		t.Fatalf("--version exit code = %d, want 0", code)
	}
}

func TestShortenCommit(t *testing.T) {
	if got := shortenCommit("abcdef123456789"); got != "abcdef123456" {
		t.Errorf("long commit: got %q", got)
	}
	if got := shortenCommit("abc123"); got != "abc123" {
		t.Errorf("short commit: got %q", got)
	}
}

func TestNormalizeBuildTimeUTC(t *testing.T) {
	if _, ok := normalizeBuildTimeUTC("unknown"); ok {
		t.Error("unknown accepted")
	}
	if _, ok := normalizeBuildTimeUTC("not-a-time"); ok {
		t.Error("garbage accepted")
	}
	got, ok := normalizeBuildTimeUTC("2026-08-25T10:30:00+02:00")
	if !ok || got != "2026-08-25T08:30:00Z" {
		t.Errorf("got %q ok=%v", got, ok)
	}
}
