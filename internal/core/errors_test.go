package core

import (
	"fmt"
	"testing"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

func TestErrorForReplyKind(t *testing.T) {
	tests := []struct {
		kind     rrp.ErrorKind
		expected int
	}{
		{rrp.KindBadRequest, ExitUsage},
		{rrp.KindInvalidValue, ExitUsage},
		{rrp.KindNotIdentified, ExitIdentity},
		{rrp.KindInvalidState, ExitState},
		{rrp.KindInternal, ExitRuntime},
		{rrp.KindPlayer, ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyKind(test.kind, "message")
		if err.Code != test.expected {
			t.Fatalf("kind %s expected %d got %d", test.kind, test.expected, err.Code)
		}
		if !rrp.IsKind(err, test.kind) {
			t.Fatalf("kind %s not preserved through CLIError", test.kind)
		}
	}
}

func TestExitCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("ban: %w", &CLIError{Code: ExitState, Msg: "nothing is playing"})
	if got := ExitCode(err); got != ExitState {
		t.Fatalf("expected %d, got %d", ExitState, got)
	}
	if ExitCode(nil) != ExitOK {
		t.Fatalf("expected ok for nil")
	}
	if ExitCode(fmt.Errorf("boom")) != ExitRuntime {
		t.Fatalf("expected runtime for plain errors")
	}
}
