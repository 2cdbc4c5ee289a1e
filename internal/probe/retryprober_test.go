package probe

import (
	"context"
	"strings"
	"testing"
	"time"
)

// fake prober you can control
type fakeProber struct {
	results []Result
	i       int
}

func (f *fakeProber) Probe(ctx context.Context, host string, port int) Result {
	if f.i >= len(f.results) {
		return Result{Reachable: false, Reason: "no more"}
	}
	r := f.results[f.i]
	f.i++
	return r
}

func TestRetryProber_SucceedsAfterRetry(t *testing.T) {
	f := &fakeProber{
		results: []Result{
			{Reachable: false, Reason: "timeout"},
			{Reachable: true},
		},
	}
	rp := &RetryProber{
		Inner:    f,
		Attempts: 3,
		Backoff:  10 * time.Millisecond,
	}
	out := rp.Probe(context.Background(), "example.com", 443)
	if !out.Reachable {
		t.Fatalf("expected success after retry, got %+v", out)
	}
	if f.i != 2 {
		t.Fatalf("expected 2 attempts, got %d", f.i)
	}
}

func TestRetryProber_AllFailAnnotates(t *testing.T) {
	f := &fakeProber{
		results: []Result{
			{Reachable: false, Reason: "connection_refused"},
			{Reachable: false, Reason: "connection_refused"},
		},
	}
	rp := &RetryProber{
		Inner:    f,
		Attempts: 2,
		Backoff:  0,
	}
	out := rp.Probe(context.Background(), "example.com", 443)
	if out.Reachable {
		t.Fatalf("expected failure, got success")
	}
	if !strings.HasSuffix(out.Reason, "(after retries)") {
		t.Fatalf("expected retry annotation, got %q", out.Reason)
	}
}

func TestRetryProber_SingleAttemptPassesThrough(t *testing.T) {
	f := &fakeProber{results: []Result{{Reachable: false, Reason: "timeout"}}}
	rp := &RetryProber{Inner: f}
	out := rp.Probe(context.Background(), "example.com", 443)
	if out.Reason != "timeout" {
		t.Fatalf("single attempt should not annotate, got %q", out.Reason)
	}
}
