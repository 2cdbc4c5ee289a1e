package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/probe"
	"github.com/hamed0406/portwatch/internal/scheduler"
)

// Scheduler runs a target's Tick once after a delay.
type Scheduler interface {
	ScheduleAfterDelay(t scheduler.Target, delay time.Duration)
}

type Config struct {
	PollingInterval time.Duration
	GracePeriod     time.Duration
}

type Option func(*Monitor)

// WithClock overrides the wall clock used for grace periods and outage windows.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// Monitor owns the debounced status of one endpoint. A tick chain runs
// while at least one observer is registered; each tick schedules exactly
// one successor, so ticks of a Monitor never overlap.
type Monitor struct {
	endpoint domain.Endpoint
	sched    Scheduler
	prober   probe.Prober
	now      func() time.Time
	log      *zap.Logger

	mu              sync.Mutex
	status          domain.Status
	pollingInterval time.Duration
	gracePeriod     time.Duration
	graceStart      time.Time // zero unless Up is debouncing toward Down
	outage          *domain.OutageWindow
	observers       []Observer
	armed           bool
	epoch           uint64 // bumped on every arming; ticks of older epochs are stale
	invalidated     bool
	last            *domain.Transition
	lastProbe       probe.Result
	lastCheckedAt   time.Time
}

func New(ep domain.Endpoint, cfg Config, sched Scheduler, prober probe.Prober, opts ...Option) *Monitor {
	m := &Monitor{
		endpoint:        ep,
		sched:           sched,
		prober:          prober,
		now:             time.Now,
		log:             zap.NewNop(),
		status:          domain.StatusUnknown,
		pollingInterval: cfg.PollingInterval,
		gracePeriod:     cfg.GracePeriod,
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With(zap.String("endpoint", ep.String()))
	return m
}

func (m *Monitor) Endpoint() domain.Endpoint { return m.endpoint }

// tick is the scheduler target for one armed period of a Monitor.
type tick struct {
	m     *Monitor
	epoch uint64
}

func (t tick) Tick() { t.m.tick(t.epoch) }

// live reports whether a tick of the given epoch may keep the chain going.
// Caller holds m.mu.
func (m *Monitor) live(epoch uint64) bool {
	return !m.invalidated && m.armed && epoch == m.epoch
}

func (m *Monitor) tick(epoch uint64) {
	m.mu.Lock()
	if !m.live(epoch) {
		m.mu.Unlock()
		return
	}
	inOutage := m.outage != nil && m.outage.Contains(m.now())
	m.mu.Unlock()

	var raw domain.Status
	var res probe.Result
	if inOutage {
		raw = domain.StatusPlannedOut
	} else {
		res = m.prober.Probe(context.Background(), m.endpoint.Host, m.endpoint.Port)
		raw = domain.StatusDown
		if res.Reachable {
			raw = domain.StatusUp
		}
	}

	m.mu.Lock()
	if epoch != m.epoch {
		// disarmed and re-armed while probing; the newer chain owns the state now
		m.mu.Unlock()
		return
	}
	now := m.now()
	if !inOutage {
		m.lastProbe = res
		m.lastCheckedAt = now
	}

	if raw == domain.StatusDown && m.status == domain.StatusUp && !inOutage {
		if m.graceStart.IsZero() {
			m.graceStart = now
		}
		elapsed := now.Sub(m.graceStart)
		if elapsed < m.gracePeriod {
			remaining := m.gracePeriod - elapsed
			rearm := m.live(epoch)
			m.mu.Unlock()

			m.log.Debug("monitor_grace_period",
				zap.Duration("remaining", remaining),
				zap.String("reason", res.Reason),
			)
			if rearm {
				m.sched.ScheduleAfterDelay(tick{m: m, epoch: epoch}, remaining)
			}
			return
		}
	}
	m.graceStart = time.Time{}

	var (
		notify []Observer
		tr     domain.Transition
	)
	changed := raw != m.status
	if changed {
		tr = domain.Transition{Endpoint: m.endpoint, From: m.status, To: raw, At: now}
		m.status = raw
		m.last = &tr
		notify = append([]Observer(nil), m.observers...)
	}

	delay := m.pollingInterval
	if m.status == domain.StatusPlannedOut && m.outage != nil {
		delay = m.outage.Remaining(now)
	}
	m.mu.Unlock()

	if changed {
		m.log.Info("monitor_status_changed",
			zap.Stringer("from", tr.From),
			zap.Stringer("to", tr.To),
			zap.Float64("latency_ms", res.LatencyMS),
			zap.String("reason", res.Reason),
			zap.Int("observers", len(notify)),
		)
		m.notify(notify, tr)
	}

	m.mu.Lock()
	rearm := m.live(epoch)
	m.mu.Unlock()
	if rearm {
		m.sched.ScheduleAfterDelay(tick{m: m, epoch: epoch}, delay)
	}
}

func (m *Monitor) notify(observers []Observer, tr domain.Transition) {
	for _, o := range observers {
		m.deliver(o, tr)
	}
}

func (m *Monitor) deliver(o Observer, tr domain.Transition) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("monitor_observer_panic", zap.Any("panic", r))
		}
	}()
	o.StatusChanged(tr)
}

// Register adds an observer. The first observer arms the tick chain; the
// first tick runs one polling interval later. Duplicates are not filtered.
func (m *Monitor) Register(o Observer) {
	if o == nil {
		return
	}
	m.mu.Lock()
	if m.invalidated {
		m.mu.Unlock()
		return
	}
	m.observers = append(m.observers, o)
	arm := !m.armed
	var (
		epoch uint64
		delay time.Duration
	)
	if arm {
		m.armed = true
		m.epoch++
		m.graceStart = time.Time{}
		epoch = m.epoch
		delay = m.pollingInterval
	}
	m.mu.Unlock()

	if arm {
		m.log.Debug("monitor_armed", zap.Duration("first_tick_in", delay))
		m.sched.ScheduleAfterDelay(tick{m: m, epoch: epoch}, delay)
	}
}

// Unregister removes one registration of o. Removing the last observer
// disarms the monitor; a tick already in flight finishes first.
func (m *Monitor) Unregister(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	for i, cur := range m.observers {
		if cur == o {
			m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
			break
		}
	}
	if len(m.observers) == 0 && m.armed {
		m.armed = false
		m.log.Debug("monitor_disarmed")
	}
}

// SetPollingInterval takes effect at the next scheduling decision.
func (m *Monitor) SetPollingInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	m.pollingInterval = d
}

// SetGracePeriod takes effect at the next tick.
func (m *Monitor) SetGracePeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	m.gracePeriod = d
}

// SetOutageWindow replaces the planned outage window [start, end).
func (m *Monitor) SetOutageWindow(start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	m.outage = &domain.OutageWindow{Start: start, End: end}
}

func (m *Monitor) ClearOutageWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	m.outage = nil
}

// Invalidate permanently stops the monitor. A tick already past its
// liveness check may still complete one probe and notification.
func (m *Monitor) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	m.invalidated = true
	m.log.Debug("monitor_invalidated")
}

// Snapshot is a point-in-time, read-only view of a Monitor.
type Snapshot struct {
	Endpoint        domain.Endpoint
	Status          domain.Status
	PollingInterval time.Duration
	GracePeriod     time.Duration
	InGracePeriod   bool
	Outage          *domain.OutageWindow
	LastTransition  *domain.Transition
	LastProbe       probe.Result
	LastCheckedAt   time.Time
	Observers       int
	Armed           bool
	Invalidated     bool
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Endpoint:        m.endpoint,
		Status:          m.status,
		PollingInterval: m.pollingInterval,
		GracePeriod:     m.gracePeriod,
		InGracePeriod:   !m.graceStart.IsZero(),
		LastProbe:       m.lastProbe,
		LastCheckedAt:   m.lastCheckedAt,
		Observers:       len(m.observers),
		Armed:           m.armed,
		Invalidated:     m.invalidated,
	}
	if m.outage != nil {
		w := *m.outage
		s.Outage = &w
	}
	if m.last != nil {
		tr := *m.last
		s.LastTransition = &tr
	}
	return s
}
