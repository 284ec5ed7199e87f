package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/reelbot/pkg/videogen"
	"github.com/user/reelbot/pkg/videogen/grok"
)

func testPolicy(attempts int) (*RetryPolicy, *[]time.Duration) {
	var slept []time.Duration
	return &RetryPolicy{
		MaxAttempts: attempts,
		Delay:       1 * time.Second,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}, &slept
}

func TestExecuteSuccessNoSleep(t *testing.T) {
	policy, slept := testPolicy(3)
	calls := 0

	err := policy.Execute(func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("success must not wait, slept %v", *slept)
	}
}

func TestExecuteRetriesWithFixedDelay(t *testing.T) {
	policy, slept := testPolicy(3)
	calls := 0

	err := policy.Execute(func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 delays, got %d", len(*slept))
	}
	for _, d := range *slept {
		if d != 1*time.Second {
			t.Errorf("expected fixed 1s delay, got %v", d)
		}
	}
}

func TestExecuteTimeoutAllAttempts(t *testing.T) {
	policy, slept := testPolicy(3)
	calls := 0

	err := policy.Execute(func() error {
		calls++
		return fmt.Errorf("request timed out after 180 seconds")
	})
	if err == nil {
		t.Fatal("expected failure after all attempts")
	}
	// The final error is the attempt's message verbatim, naming the
	// configured timeout.
	if err.Error() != "request timed out after 180 seconds" {
		t.Errorf("expected verbatim final error, got %q", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(*slept) != 2 {
		t.Errorf("expected two delays between three attempts, got %d", len(*slept))
	}
}

func TestExecuteTerminalErrorsNotRetried(t *testing.T) {
	terminal := []error{
		videogen.ErrNoAPIKey,
		videogen.ErrAccessDenied,
		videogen.ErrNoVideoURL,
		&grok.StatusError{StatusCode: 500, Snippet: "boom"},
	}

	for _, want := range terminal {
		policy, slept := testPolicy(3)
		calls := 0
		err := policy.Execute(func() error {
			calls++
			return want
		})
		if !errors.Is(err, want) && err.Error() != want.Error() {
			t.Errorf("expected %v surfaced, got %v", want, err)
		}
		if calls != 1 {
			t.Errorf("terminal error %v should not be retried, got %d calls", want, calls)
		}
		if len(*slept) != 0 {
			t.Errorf("terminal error %v should not wait, slept %v", want, *slept)
		}
	}
}

func TestIsTimeoutErr(t *testing.T) {
	if !isTimeoutErr(errors.New("request timed out after 10 seconds")) {
		t.Error("expected timed-out message to classify as timeout")
	}
	if isTimeoutErr(errors.New("connection refused")) {
		t.Error("connection refused is not a timeout")
	}
}
