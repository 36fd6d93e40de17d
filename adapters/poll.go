package adapters

import (
	"context"
	"time"
)

// CheckResult is one observation of an asynchronous task's status.
type CheckResult struct {
	Completed bool   `json:"completed"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CheckFunc queries a task's status once.
type CheckFunc func(ctx context.Context) (*CheckResult, error)

// Poll invokes check with a fixed delay between calls until it reports
// completion, reports a task error (failed immediately, no retry), or the
// timeout elapses. There is no backoff and no jitter, a single linear wait
// loop.
func Poll(ctx context.Context, check CheckFunc, interval, timeout time.Duration) (string, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", &TimeoutError{Timeout: timeout}
		case <-ticker.C:
			result, err := check(ctx)
			if err != nil {
				return "", err
			}
			if result.Error != "" {
				return "", &TaskFailedError{Reason: result.Error}
			}
			if result.Completed {
				return result.URL, nil
			}
		}
	}
}
