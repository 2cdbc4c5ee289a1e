package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/config"
	"github.com/hamed0406/portwatch/internal/httpapi"
	apimw "github.com/hamed0406/portwatch/internal/httpapi/middleware"
	"github.com/hamed0406/portwatch/internal/logging"
	"github.com/hamed0406/portwatch/internal/monitor"
	"github.com/hamed0406/portwatch/internal/notify"
	"github.com/hamed0406/portwatch/internal/probe"
	"github.com/hamed0406/portwatch/internal/registry"
	"github.com/hamed0406/portwatch/internal/repo"
	"github.com/hamed0406/portwatch/internal/repo/memory"
	"github.com/hamed0406/portwatch/internal/repo/postgres"
	"github.com/hamed0406/portwatch/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		log.Fatal(err)
	}
}

type stores struct {
	endpoints repo.EndpointStore
	statuses  repo.StatusStore
	close     func()
}

// openStores uses Postgres when DATABASE_URL is set, memory otherwise.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("store_memory")
		mem := memory.New()
		return stores{endpoints: mem, statuses: mem, close: func() {}}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return stores{}, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return stores{}, err
	}
	logger.Info("store_postgres")
	return stores{endpoints: pg, statuses: pg, close: pg.Close}, nil
}

func newProber(cfg config.Config) probe.Prober {
	tcp := probe.NewTCPProber(cfg.ProbeTimeout)
	if cfg.ProbeAttempts <= 1 {
		return tcp
	}
	return &probe.RetryProber{Inner: tcp, Attempts: cfg.ProbeAttempts, Backoff: cfg.ProbeBackoff}
}

// observers is the set every endpoint starts with.
func observers(cfg config.Config, st stores, logger *zap.Logger) []monitor.Observer {
	obs := []monitor.Observer{
		&notify.LogObserver{Log: logger},
		&notify.StoreObserver{Store: st.statuses, Log: logger},
	}
	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		notifiers = append(notifiers, s)
	}
	if len(notifiers) > 0 {
		obs = append(obs, notify.NewTransitionObserver(notifiers, notify.AlertConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
		}, logger))
		logger.Info("alerts_enabled", zap.Int("notifiers", len(notifiers)), zap.Bool("on_recovery", cfg.AlertOnRecovery))
	}
	return obs
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	prober := newProber(cfg)
	sched := scheduler.New(logger)
	reg := registry.New(sched, prober,
		registry.WithStore(st.endpoints),
		registry.WithStatusStore(st.statuses),
		registry.WithLogger(logger),
		registry.WithDefaultObservers(observers(cfg, st, logger)...),
	)

	if err := reg.Load(ctx); err != nil {
		logger.Warn("registry_load_partial", zap.Error(err))
	}
	if cfg.EndpointsFile != "" {
		specs, err := config.LoadEndpoints(cfg.EndpointsFile, cfg.DefaultPollInterval, cfg.DefaultGracePeriod)
		if err != nil {
			return err
		}
		if err := reg.Seed(ctx, specs); err != nil {
			logger.Warn("registry_seed_partial", zap.Error(err))
		}
	}

	api := httpapi.NewServer(logger, reg, prober, httpapi.Defaults{
		PollingInterval: cfg.DefaultPollInterval,
		GracePeriod:     cfg.DefaultGracePeriod,
	})
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Int("endpoints", reg.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("api_shutdown")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	reg.Close()
	logger.Info("scheduler_stopping", zap.Int("pending_ticks", sched.Pending()))
	err = multierr.Append(err, sched.Stop(shutdownCtx))
	return err
}
