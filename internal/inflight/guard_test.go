package inflight

import (
	"sync"
	"testing"
)

func TestTryAcquireAndRelease(t *testing.T) {
	guard := NewGuard()

	id, ok := guard.TryAcquire("user-1")
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	if id == "" {
		t.Fatal("expected a task ID")
	}

	if _, ok := guard.TryAcquire("user-1"); ok {
		t.Fatal("second acquire while in flight should fail")
	}
	if !guard.Active("user-1") {
		t.Error("user should be active")
	}

	guard.Release("user-1", id)
	if guard.Active("user-1") {
		t.Error("user should be idle after release")
	}
	if _, ok := guard.TryAcquire("user-1"); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestUsersIndependent(t *testing.T) {
	guard := NewGuard()

	if _, ok := guard.TryAcquire("user-1"); !ok {
		t.Fatal("user-1 acquire should succeed")
	}
	if _, ok := guard.TryAcquire("user-2"); !ok {
		t.Fatal("user-2 must not be blocked by user-1")
	}
}

func TestStaleReleaseDoesNotClobber(t *testing.T) {
	guard := NewGuard()

	stale, _ := guard.TryAcquire("user-1")
	guard.Release("user-1", stale)

	// A new task starts; the old task's release arrives late.
	fresh, ok := guard.TryAcquire("user-1")
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
	guard.Release("user-1", stale)

	if !guard.Active("user-1") {
		t.Fatal("stale release must not remove the newer task")
	}
	guard.Release("user-1", fresh)
	if guard.Active("user-1") {
		t.Error("matching release should remove the entry")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	guard := NewGuard()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := guard.TryAcquire("user-1"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}
