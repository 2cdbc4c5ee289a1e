package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

// DefaultTimeout bounds a single connect attempt.
const DefaultTimeout = 5 * time.Second

type TCPProber struct {
	Dialer *net.Dialer
}

func NewTCPProber(timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCPProber{
		Dialer: &net.Dialer{Timeout: timeout},
	}
}

func (p *TCPProber) Probe(ctx context.Context, host string, port int) Result {
	start := time.Now()
	conn, err := p.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return Result{Reachable: false, LatencyMS: latency, Reason: Classify(err)}
	}
	_ = conn.Close()
	return Result{Reachable: true, LatencyMS: latency}
}

// Classify maps a dial error to a stable reason string.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsNotFound {
			return "dns_not_found"
		}
		if de.IsTemporary || de.Timeout() {
			return "dns_timeout"
		}
		return "dns_error"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection_refused"
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return "unreachable"
	}
	return "dial_error"
}
