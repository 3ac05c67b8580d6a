package server

import (
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("client|42|execute", 3) {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if rl.Allow("client|42|execute", 3) {
		t.Error("fourth hit in the window should be denied")
	}

	// Different key has its own window.
	if !rl.Allow("client|42|validate", 3) {
		t.Error("other mode should not share the window")
	}

	// Window slides.
	now = now.Add(61 * time.Second)
	if !rl.Allow("client|42|execute", 3) {
		t.Error("hit after the window passed should be allowed")
	}
}
