package ratelimit

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAllowUpToLimit(t *testing.T) {
	limiter := New(time.Hour, 3)

	for i := 0; i < 3; i++ {
		ok, msg := limiter.Allow("group-1")
		if !ok {
			t.Fatalf("call %d should be allowed, got %q", i+1, msg)
		}
	}

	ok, msg := limiter.Allow("group-1")
	if ok {
		t.Fatal("call over the limit should be rejected")
	}
	if !strings.Contains(msg, "3 calls per 3600 seconds") {
		t.Errorf("rejection should name the limit and window, got %q", msg)
	}
}

func TestWindowReset(t *testing.T) {
	limiter := New(time.Hour, 1)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	if ok, _ := limiter.Allow("group-1"); !ok {
		t.Fatal("first call should be allowed")
	}
	if ok, _ := limiter.Allow("group-1"); ok {
		t.Fatal("second call in the same window should be rejected")
	}

	current = current.Add(time.Hour)
	if ok, _ := limiter.Allow("group-1"); !ok {
		t.Fatal("call after the window elapsed should be allowed")
	}
	if ok, _ := limiter.Allow("group-1"); ok {
		t.Fatal("the reset window should count fresh calls")
	}
}

func TestDirectChatNeverLimited(t *testing.T) {
	limiter := New(time.Hour, 1)
	for i := 0; i < 10; i++ {
		if ok, _ := limiter.Allow(""); !ok {
			t.Fatal("direct chats must not be rate limited")
		}
	}
}

func TestGroupsIsolated(t *testing.T) {
	limiter := New(time.Hour, 1)

	if ok, _ := limiter.Allow("group-a"); !ok {
		t.Fatal("group-a first call should be allowed")
	}
	if ok, _ := limiter.Allow("group-b"); !ok {
		t.Fatal("group-b should have its own window")
	}
	if ok, _ := limiter.Allow("group-a"); ok {
		t.Fatal("group-a should be exhausted")
	}
}

func TestConcurrentAllowNeverOvershoots(t *testing.T) {
	const maxCalls = 5
	limiter := New(time.Hour, maxCalls)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("group-1"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != maxCalls {
		t.Errorf("expected exactly %d allowed calls, got %d", maxCalls, allowed)
	}
}

func TestConcurrentFirstUseSingleEntry(t *testing.T) {
	limiter := New(time.Hour, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Allow("new-group")
		}()
	}
	wg.Wait()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.entries) != 1 {
		t.Errorf("expected a single lazily created entry, got %d", len(limiter.entries))
	}
	if limiter.entries["new-group"].count != 20 {
		t.Errorf("expected 20 counted calls, got %d", limiter.entries["new-group"].count)
	}
}
