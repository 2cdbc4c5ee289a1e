// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/config"
	"github.com/hamed0406/portwatch/internal/repo/postgres"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty (admin routes are open to anyone).")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys configured (read routes are open to anyone).")
	}
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		fail("API_ADDR " + cfg.Addr + " is not host:port: " + err.Error())
	}
	ok("API_ADDR=" + cfg.Addr)

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fail("LOG_DIR " + cfg.LogDir + " is not writable: " + err.Error())
	}
	ok("LOG_DIR=" + cfg.LogDir)

	ok(fmt.Sprintf("probe timeout=%s attempts=%d, default interval=%s grace=%s",
		cfg.ProbeTimeout, cfg.ProbeAttempts, cfg.DefaultPollInterval, cfg.DefaultGracePeriod))

	if cfg.EndpointsFile != "" {
		specs, err := config.LoadEndpoints(cfg.EndpointsFile, cfg.DefaultPollInterval, cfg.DefaultGracePeriod)
		if err != nil {
			fail("ENDPOINTS_FILE: " + err.Error())
		}
		ok(fmt.Sprintf("ENDPOINTS_FILE=%s (%d endpoints)", cfg.EndpointsFile, len(specs)))
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; endpoints live in memory and are lost on restart.")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop())
		if err == nil {
			err = store.EnsureSchema(ctx)
			store.Close()
		}
		cancel()
		if err != nil {
			fail("DATABASE_URL unusable: " + err.Error())
		}
		ok("DATABASE_URL reachable, schema ready")
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; transitions are logged but not alerted.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
