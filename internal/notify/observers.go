package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/repo"
)

type AlertConfig struct {
	AlertOnRecovery bool
	// Cooldown suppresses repeated DOWN alerts for the same endpoint.
	Cooldown time.Duration
	// Timeout bounds each Send.
	Timeout time.Duration
}

// TransitionObserver turns status transitions into notifications.
type TransitionObserver struct {
	notifier Notifier
	cfg      AlertConfig
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastDown map[domain.Endpoint]time.Time
}

func NewTransitionObserver(n Notifier, cfg AlertConfig, log *zap.Logger) *TransitionObserver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TransitionObserver{
		notifier: n,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		lastDown: make(map[domain.Endpoint]time.Time),
	}
}

// shouldAlert decides whether tr deserves a message. Unknown to Up is the
// first successful probe, not a recovery.
func (o *TransitionObserver) shouldAlert(tr domain.Transition) bool {
	switch tr.To {
	case domain.StatusDown:
		if o.cfg.Cooldown <= 0 {
			return true
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		now := o.now()
		if last, ok := o.lastDown[tr.Endpoint]; ok && now.Sub(last) < o.cfg.Cooldown {
			return false
		}
		// expired entries would never suppress anything again
		for ep, last := range o.lastDown {
			if now.Sub(last) >= o.cfg.Cooldown {
				delete(o.lastDown, ep)
			}
		}
		o.lastDown[tr.Endpoint] = now
		return true
	case domain.StatusUp:
		return o.cfg.AlertOnRecovery && tr.From == domain.StatusDown
	default:
		return false
	}
}

func (o *TransitionObserver) StatusChanged(tr domain.Transition) {
	if o.notifier == nil || !o.shouldAlert(tr) {
		return
	}
	title := "🔴 Endpoint DOWN"
	if tr.To == domain.StatusUp {
		title = "🟢 Endpoint RECOVERED"
	}
	text := fmt.Sprintf("%s went %s at %s", tr.Endpoint, tr.To, tr.At.Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Timeout)
	defer cancel()
	if err := o.notifier.Send(ctx, Alert{Title: title, Text: text, Transition: tr}); err != nil {
		o.log.Warn("alert_send_failed", zap.String("endpoint", tr.Endpoint.String()), zap.Error(err))
		return
	}
	o.log.Info("alert_sent", zap.String("endpoint", tr.Endpoint.String()), zap.Stringer("status", tr.To))
}

// StoreObserver records the latest transition of each endpoint.
type StoreObserver struct {
	Store   repo.StatusStore
	Log     *zap.Logger
	Timeout time.Duration
}

func (o *StoreObserver) StatusChanged(tr domain.Transition) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.Store.Set(ctx, tr); err != nil && o.Log != nil {
		o.Log.Warn("status_store_failed", zap.String("endpoint", tr.Endpoint.String()), zap.Error(err))
	}
}

// LogObserver writes every transition to the log.
type LogObserver struct {
	Log *zap.Logger
}

func (o *LogObserver) StatusChanged(tr domain.Transition) {
	o.Log.Info("endpoint_transition",
		zap.String("endpoint", tr.Endpoint.String()),
		zap.Stringer("from", tr.From),
		zap.Stringer("to", tr.To),
		zap.Time("at", tr.At),
	)
}
