package protocol_test

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"relay/pkg/protocol"
)

// TestSpawnError_UnwrapsUnderlyingOSError verifies that errors.As and
// errors.Is see through SpawnError to the wrapped launch failure.
func TestSpawnError_UnwrapsUnderlyingOSError(t *testing.T) {
	underlying := os.ErrNotExist
	err := fmt.Errorf("route: %w", &protocol.SpawnError{ProjectName: "web", Err: underlying})

	var spawnErr *protocol.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatal("errors.As failed to find SpawnError")
	}
	if spawnErr.ProjectName != "web" {
		t.Errorf("ProjectName = %q, want %q", spawnErr.ProjectName, "web")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("errors.Is failed to find wrapped OS error")
	}
}

// TestErrorMessages verifies each error type renders the identifying
// context in its message.
func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&protocol.ValidationError{Field: "projectName"}, "projectName"},
		{&protocol.NotFoundError{Kind: "session", ID: "s-1"}, "session s-1"},
		{&protocol.ConflictError{ProjectName: "web", PID: 42}, "web"},
		{&protocol.TimeoutError{QuestionID: "q-1", Timeout: "50ms"}, "50ms"},
		{&protocol.BridgeUnavailableError{Reason: "transport disabled"}, "transport disabled"},
	}
	for _, c := range cases {
		if !strings.Contains(c.err.Error(), c.want) {
			t.Errorf("%T message %q does not contain %q", c.err, c.err.Error(), c.want)
		}
	}
}
