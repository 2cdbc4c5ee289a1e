package probe

import "context"

// Result is the outcome of a single connectivity attempt.
//
// Fields:
//   - Reachable: a TCP connection was established.
//   - Reason: short classification of a failure ("timeout", "connection_refused", ...),
//     empty on success. Only used for logging; callers must treat every failure the same.
type Result struct {
	Reachable bool
	LatencyMS float64
	Reason    string
}

// Prober performs one reachability check against host:port.
// Implementations never return errors; failures fold into Reachable=false.
type Prober interface {
	Probe(ctx context.Context, host string, port int) Result
}
