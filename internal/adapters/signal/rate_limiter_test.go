package signal

import (
	"testing"
	"time"
)

func TestJoinRateLimiter(t *testing.T) {
	rl := NewJoinRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("sid-1") {
			t.Fatalf("attempt %d denied inside the limit", i+1)
		}
	}
	if rl.Allow("sid-1") {
		t.Fatal("attempt over the limit must be denied")
	}
	// Other connections have their own window.
	if !rl.Allow("sid-2") {
		t.Fatal("different connection must not share the window")
	}
}

func TestJoinRateLimiterWindowExpiry(t *testing.T) {
	rl := NewJoinRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("sid-1") {
		t.Fatal("first attempt denied")
	}
	if rl.Allow("sid-1") {
		t.Fatal("second attempt inside the window must be denied")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("sid-1") {
		t.Fatal("attempt after the window must be allowed")
	}
}

func TestJoinRateLimiterForget(t *testing.T) {
	rl := NewJoinRateLimiter(1, time.Minute)
	rl.Allow("sid-1")
	if rl.Allow("sid-1") {
		t.Fatal("limit should be reached")
	}
	rl.Forget("sid-1")
	if !rl.Allow("sid-1") {
		t.Fatal("history must reset after Forget")
	}
}
