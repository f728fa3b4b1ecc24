package protocol_test

import (
	"testing"

	"relay/pkg/protocol"
)

// TestQueueKey_FoldsNonAlphanumeric verifies that punctuation and spaces
// become underscores and letters are lowercased.
func TestQueueKey_FoldsNonAlphanumeric(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"MyApp", "myapp"},
		{"my-app", "my_app"},
		{"My App 2", "my_app_2"},
		{"web/backend", "web_backend"},
		{"..", "__"},
	}
	for _, c := range cases {
		if got := protocol.QueueKey(c.in); got != c.want {
			t.Errorf("QueueKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// TestQueueKey_CaseInsensitiveCollision verifies that names differing only
// in case map to the same durable record key.
func TestQueueKey_CaseInsensitiveCollision(t *testing.T) {
	if protocol.QueueKey("Frontend") != protocol.QueueKey("frontend") {
		t.Fatal("expected case-insensitive keys to collide")
	}
	if protocol.QueueKey("My-App") != protocol.QueueKey("my_app") {
		t.Fatal("expected folded punctuation keys to collide")
	}
}
