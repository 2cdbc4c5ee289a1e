package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Endpoint identifies a monitored network service.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Validate rejects empty hosts and ports outside 1..65535.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("endpoint: empty host")
	}
	if strings.Contains(e.Host, "://") {
		return fmt.Errorf("endpoint: host %q must not contain a scheme", e.Host)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("endpoint: port %d out of range", e.Port)
	}
	return nil
}

// ParseEndpoint parses "host:port" (IPv6 hosts in brackets).
func ParseEndpoint(raw string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", raw, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: bad port: %w", raw, err)
	}
	ep := Endpoint{Host: strings.ToLower(host), Port: port}
	if err := ep.Validate(); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

// OutageWindow is a planned outage over [Start, End).
type OutageWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the window.
func (w OutageWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Remaining is the time left in the window at t, never negative.
func (w OutageWindow) Remaining(t time.Time) time.Duration {
	d := w.End.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// Transition is one observed status change.
type Transition struct {
	Endpoint Endpoint  `json:"endpoint"`
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	At       time.Time `json:"at"`
}

// EndpointSpec is the persisted definition of a monitored endpoint.
type EndpointSpec struct {
	Endpoint        Endpoint      `json:"endpoint"`
	PollingInterval time.Duration `json:"polling_interval"`
	GracePeriod     time.Duration `json:"grace_period"`
	Outage          *OutageWindow `json:"outage,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}
