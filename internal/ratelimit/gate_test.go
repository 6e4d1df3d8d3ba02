package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestAllowUnderLimit(t *testing.T) {
	gate := NewGate(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !gate.Allow(1) {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}
}

func TestSixthRequestDenied(t *testing.T) {
	gate := NewGate(5, time.Minute)

	allowed := 0
	denied := 0
	for i := 0; i < 6; i++ {
		if gate.Allow(42) {
			allowed++
		} else {
			denied++
		}
	}

	if allowed != 5 || denied != 1 {
		t.Errorf("Expected 5 allowed and 1 denied, got %d allowed and %d denied", allowed, denied)
	}
}

func TestConcurrentCallsSameUser(t *testing.T) {
	gate := NewGate(5, time.Minute)

	var wg sync.WaitGroup
	results := make(chan bool, 6)

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gate.Allow(7)
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}

	if allowed != 5 {
		t.Errorf("Expected exactly 5 allowed under concurrency, got %d", allowed)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	gate := NewGate(1, time.Minute)

	if !gate.Allow(1) {
		t.Error("Expected user 1 to be allowed")
	}
	if !gate.Allow(2) {
		t.Error("Expected user 2 to be allowed despite user 1 being limited")
	}
	if gate.Allow(1) {
		t.Error("Expected user 1 second request to be denied")
	}
}

func TestWindowExpiry(t *testing.T) {
	gate := NewGate(2, time.Minute)
	current := time.Unix(1000, 0)
	gate.now = func() time.Time { return current }

	if !gate.Allow(5) || !gate.Allow(5) {
		t.Fatal("Expected first two requests to be allowed")
	}
	if gate.Allow(5) {
		t.Fatal("Expected third request to be denied")
	}

	// Advance past the window; the old entries must be purged
	current = current.Add(61 * time.Second)
	if !gate.Allow(5) {
		t.Error("Expected request after window expiry to be allowed")
	}
}

func TestDenialDoesNotExtendWindow(t *testing.T) {
	gate := NewGate(1, time.Minute)
	current := time.Unix(1000, 0)
	gate.now = func() time.Time { return current }

	if !gate.Allow(9) {
		t.Fatal("Expected first request to be allowed")
	}

	// Hammer denials for 30s; they must not count against the window
	for i := 0; i < 10; i++ {
		current = current.Add(3 * time.Second)
		if gate.Allow(9) {
			t.Fatal("Expected request inside window to be denied")
		}
	}

	current = current.Add(31 * time.Second)
	if !gate.Allow(9) {
		t.Error("Expected request to be allowed once the original entry expired")
	}
}

func TestRetryAfter(t *testing.T) {
	gate := NewGate(1, time.Minute)
	current := time.Unix(1000, 0)
	gate.now = func() time.Time { return current }

	if gate.RetryAfter(3) != 0 {
		t.Error("Expected zero retry-after for an unseen user")
	}

	gate.Allow(3)

	current = current.Add(20 * time.Second)
	wait := gate.RetryAfter(3)
	if wait != 40*time.Second {
		t.Errorf("Expected 40s retry-after, got %v", wait)
	}

	current = current.Add(41 * time.Second)
	if gate.RetryAfter(3) != 0 {
		t.Errorf("Expected zero retry-after once the window passed, got %v", gate.RetryAfter(3))
	}
}

func TestPruneDropsIdleUsers(t *testing.T) {
	gate := NewGate(5, time.Minute)
	current := time.Unix(1000, 0)
	gate.now = func() time.Time { return current }

	gate.Allow(1)
	current = current.Add(2 * time.Minute)

	// Enough traffic from another user to trigger the idle sweep
	for i := 0; i < pruneEvery; i++ {
		gate.Allow(2)
	}

	gate.mu.Lock()
	_, ok := gate.users[1]
	gate.mu.Unlock()
	if ok {
		t.Error("Expected idle user pruned from the gate")
	}
	if !gate.Allow(1) {
		t.Error("Expected pruned user to be admitted again")
	}
}
