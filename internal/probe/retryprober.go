package probe

import (
	"context"
	"time"
)

// RetryProber re-probes a failed endpoint before reporting it unreachable.
// One attempt (the default) makes it a pass-through.
type RetryProber struct {
	Inner    Prober
	Attempts int
	Backoff  time.Duration
}

func (r *RetryProber) Probe(ctx context.Context, host string, port int) Result {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Result
	for i := 0; i < attempts; i++ {
		last = r.Inner.Probe(ctx, host, port)
		if last.Reachable {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(r.Backoff):
			}
		}
	}
	if attempts > 1 {
		last.Reason = last.Reason + " (after retries)"
	}
	return last
}
