package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/hamed0406/portwatch/internal/domain"
)

// EndpointsFile is the YAML seed file:
//
//	defaults:
//	  interval: 30s
//	  grace_period: 10s
//	endpoints:
//	  - host: db.internal
//	    port: 5432
//	    interval: 10s
//	    outage: {start: "2025-08-18T22:00:00Z", end: "2025-08-18T23:00:00Z"}
type EndpointsFile struct {
	Defaults  EndpointDefaults `yaml:"defaults"`
	Endpoints []EndpointEntry  `yaml:"endpoints"`
}

type EndpointDefaults struct {
	Interval    string `yaml:"interval"`
	GracePeriod string `yaml:"grace_period"`
}

type EndpointEntry struct {
	Host        string       `yaml:"host"`
	Port        int          `yaml:"port"`
	Interval    string       `yaml:"interval"`     // e.g. "30s"
	GracePeriod string       `yaml:"grace_period"` // e.g. "10s"
	Enabled     *bool        `yaml:"enabled,omitempty"`
	Outage      *OutageEntry `yaml:"outage,omitempty"`
}

type OutageEntry struct {
	Start string `yaml:"start"` // RFC3339
	End   string `yaml:"end"`
}

// LoadEndpoints parses the seed file at path. Entries without an interval
// or grace period take the file defaults, then defInterval and defGrace.
// Disabled entries are skipped.
func LoadEndpoints(path string, defInterval, defGrace time.Duration) ([]domain.EndpointSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints: %w", err)
	}

	var f EndpointsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	applyDefaults(&f, defInterval, defGrace)

	return validateAndNormalize(&f)
}

func applyDefaults(f *EndpointsFile, defInterval, defGrace time.Duration) {
	if strings.TrimSpace(f.Defaults.Interval) == "" {
		f.Defaults.Interval = defInterval.String()
	}
	if strings.TrimSpace(f.Defaults.GracePeriod) == "" {
		f.Defaults.GracePeriod = defGrace.String()
	}

	for i := range f.Endpoints {
		e := &f.Endpoints[i]

		// enabled defaults to true
		if e.Enabled == nil {
			v := true
			e.Enabled = &v
		}
		if strings.TrimSpace(e.Interval) == "" {
			e.Interval = f.Defaults.Interval
		}
		if strings.TrimSpace(e.GracePeriod) == "" {
			e.GracePeriod = f.Defaults.GracePeriod
		}
	}
}

func validateAndNormalize(f *EndpointsFile) ([]domain.EndpointSpec, error) {
	if len(f.Endpoints) == 0 {
		return nil, errors.New("config: no endpoints provided")
	}

	seen := make(map[domain.Endpoint]struct{}, len(f.Endpoints))
	out := make([]domain.EndpointSpec, 0, len(f.Endpoints))

	for i := range f.Endpoints {
		e := &f.Endpoints[i]

		ep := domain.Endpoint{Host: strings.ToLower(strings.TrimSpace(e.Host)), Port: e.Port}
		if err := ep.Validate(); err != nil {
			return nil, fmt.Errorf("config: endpoint[%d]: %w", i, err)
		}
		if _, ok := seen[ep]; ok {
			return nil, fmt.Errorf("config: duplicate endpoint %q", ep)
		}
		seen[ep] = struct{}{}

		interval, err := time.ParseDuration(e.Interval)
		if err != nil {
			return nil, fmt.Errorf("config: endpoint %q invalid interval %q: %w", ep, e.Interval, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("config: endpoint %q interval must be > 0", ep)
		}

		grace, err := time.ParseDuration(e.GracePeriod)
		if err != nil {
			return nil, fmt.Errorf("config: endpoint %q invalid grace_period %q: %w", ep, e.GracePeriod, err)
		}
		if grace < 0 {
			return nil, fmt.Errorf("config: endpoint %q grace_period cannot be negative", ep)
		}

		spec := domain.EndpointSpec{Endpoint: ep, PollingInterval: interval, GracePeriod: grace}

		if e.Outage != nil {
			start, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Outage.Start))
			if err != nil {
				return nil, fmt.Errorf("config: endpoint %q invalid outage start: %w", ep, err)
			}
			end, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Outage.End))
			if err != nil {
				return nil, fmt.Errorf("config: endpoint %q invalid outage end: %w", ep, err)
			}
			if !end.After(start) {
				return nil, fmt.Errorf("config: endpoint %q outage end must be after start", ep)
			}
			spec.Outage = &domain.OutageWindow{Start: start, End: end}
		}

		if !*e.Enabled {
			continue
		}
		out = append(out, spec)
	}

	return out, nil
}
