package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "endpoints.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadEndpoints(t *testing.T) {
	p := writeFile(t, `
defaults:
  interval: 20s
endpoints:
  - host: DB.Internal
    port: 5432
    interval: 10s
    grace_period: 5s
  - host: 127.0.0.1
    port: 10100
    outage:
      start: "2025-08-18T22:00:00Z"
      end: "2025-08-18T23:00:00Z"
  - host: old.internal
    port: 22
    enabled: false
`)
	specs, err := LoadEndpoints(p, 30*time.Second, 10*time.Second)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("want 2 enabled endpoints, got %d", len(specs))
	}

	db := specs[0]
	if db.Endpoint.Host != "db.internal" || db.PollingInterval != 10*time.Second || db.GracePeriod != 5*time.Second {
		t.Fatalf("db entry wrong: %+v", db)
	}

	local := specs[1]
	if local.PollingInterval != 20*time.Second {
		t.Fatalf("file default interval not applied: %s", local.PollingInterval)
	}
	if local.GracePeriod != 10*time.Second {
		t.Fatalf("process default grace not applied: %s", local.GracePeriod)
	}
	if local.Outage == nil || local.Outage.End.Sub(local.Outage.Start) != time.Hour {
		t.Fatalf("outage wrong: %+v", local.Outage)
	}
}

func TestLoadEndpoints_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":     `endpoints: []`,
		"bad port":  "endpoints:\n  - host: a\n    port: 0\n",
		"duplicate": "endpoints:\n  - host: a\n    port: 1\n  - host: A\n    port: 1\n",
		"interval":  "endpoints:\n  - host: a\n    port: 1\n    interval: soon\n",
		"zero":      "endpoints:\n  - host: a\n    port: 1\n    interval: 0s\n",
		"grace":     "endpoints:\n  - host: a\n    port: 1\n    grace_period: -1s\n",
		"outage":    "endpoints:\n  - host: a\n    port: 1\n    outage: {start: \"2025-08-18T23:00:00Z\", end: \"2025-08-18T22:00:00Z\"}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadEndpoints(writeFile(t, body), 30*time.Second, 10*time.Second)
			if err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestLoadEndpoints_MissingFile(t *testing.T) {
	if _, err := LoadEndpoints(filepath.Join(t.TempDir(), "nope.yaml"), time.Second, 0); err == nil {
		t.Fatal("expected read error")
	}
}
