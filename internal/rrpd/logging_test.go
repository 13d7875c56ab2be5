package rrpd

import "testing"

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level string
		debug bool
		warn  bool
	}{
		{level: "debug", debug: true, warn: true},
		{level: "", debug: false, warn: true},
		{level: "error", debug: false, warn: false},
	}
	for _, tc := range cases {
		logger := NewLogger(LogConfig{Level: tc.level, Format: "json", Output: "stderr", UTC: true})
		if got := logger.Core().Enabled(-1); got != tc.debug {
			t.Fatalf("level %q: debug enabled=%t", tc.level, got)
		}
		if got := logger.Core().Enabled(1); got != tc.warn {
			t.Fatalf("level %q: warn enabled=%t", tc.level, got)
		}
	}
}

func TestBuildVersion(t *testing.T) {
	version, commit := BuildVersion()
	if version == "" || commit == "" {
		t.Fatalf("expected version and commit, got %q %q", version, commit)
	}
}
