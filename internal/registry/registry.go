package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/monitor"
	"github.com/hamed0406/portwatch/internal/probe"
	"github.com/hamed0406/portwatch/internal/repo"
)

var (
	ErrDuplicateEndpoint = errors.New("endpoint already monitored")
	ErrUnknownEndpoint   = errors.New("endpoint not found")
	ErrInvalidConfig     = errors.New("invalid endpoint config")
)

type Option func(*Registry)

// WithStore persists every definition change before it is applied.
func WithStore(s repo.EndpointStore) Option {
	return func(r *Registry) { r.store = s }
}

// WithStatusStore lets Load restore each endpoint's last recorded transition.
func WithStatusStore(s repo.StatusStore) Option {
	return func(r *Registry) { r.statuses = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithClock is handed to every Monitor the registry creates.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithDefaultObservers are registered on every new endpoint, which arms it.
func WithDefaultObservers(obs ...monitor.Observer) Option {
	return func(r *Registry) { r.defaults = append(r.defaults, obs...) }
}

type entry struct {
	mon    *monitor.Monitor
	spec   domain.EndpointSpec
	paused bool

	// restored is the last transition recorded before a restart.
	restored *domain.Transition
}

func (e *entry) info() Info {
	in := Info{Snapshot: e.mon.Snapshot(), Paused: e.paused, CreatedAt: e.spec.CreatedAt}
	if in.LastTransition == nil && e.restored != nil {
		tr := *e.restored
		in.LastTransition = &tr
	}
	return in
}

// Registry is the only creator and destroyer of Monitors.
type Registry struct {
	sched    monitor.Scheduler
	prober   probe.Prober
	store    repo.EndpointStore
	statuses repo.StatusStore
	log      *zap.Logger
	now      func() time.Time
	defaults []monitor.Observer

	mu      sync.RWMutex
	entries map[domain.Endpoint]*entry
}

func New(sched monitor.Scheduler, prober probe.Prober, opts ...Option) *Registry {
	r := &Registry{
		sched:   sched,
		prober:  prober,
		log:     zap.NewNop(),
		now:     time.Now,
		entries: make(map[domain.Endpoint]*entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Info is a monitor snapshot plus registry-level state.
type Info struct {
	monitor.Snapshot
	Paused    bool
	CreatedAt time.Time
}

func normalize(ep domain.Endpoint) domain.Endpoint {
	ep.Host = strings.ToLower(strings.TrimSpace(ep.Host))
	return ep
}

func validateSpec(spec domain.EndpointSpec) error {
	if err := spec.Endpoint.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if spec.PollingInterval <= 0 {
		return fmt.Errorf("%w: polling interval must be positive, got %s", ErrInvalidConfig, spec.PollingInterval)
	}
	if spec.GracePeriod < 0 {
		return fmt.Errorf("%w: grace period must not be negative, got %s", ErrInvalidConfig, spec.GracePeriod)
	}
	if spec.Outage != nil {
		if err := validateWindow(spec.Outage.Start, spec.Outage.End); err != nil {
			return err
		}
	}
	return nil
}

func validateWindow(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: outage end %s not after start %s", ErrInvalidConfig,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

func (r *Registry) save(ctx context.Context, spec domain.EndpointSpec) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, spec); err != nil {
		return fmt.Errorf("persist %s: %w", spec.Endpoint, err)
	}
	return nil
}

// Add creates and starts monitoring a new endpoint.
func (r *Registry) Add(ctx context.Context, spec domain.EndpointSpec) (*monitor.Monitor, error) {
	return r.add(ctx, spec, true)
}

func (r *Registry) add(ctx context.Context, spec domain.EndpointSpec, persist bool) (*monitor.Monitor, error) {
	spec.Endpoint = normalize(spec.Endpoint)
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	if _, ok := r.entries[spec.Endpoint]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("add %s: %w", spec.Endpoint, ErrDuplicateEndpoint)
	}
	if persist {
		if err := r.save(ctx, spec); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}
	mon := monitor.New(spec.Endpoint,
		monitor.Config{PollingInterval: spec.PollingInterval, GracePeriod: spec.GracePeriod},
		r.sched, r.prober,
		monitor.WithClock(r.now), monitor.WithLogger(r.log))
	if spec.Outage != nil {
		mon.SetOutageWindow(spec.Outage.Start, spec.Outage.End)
	}
	r.entries[spec.Endpoint] = &entry{mon: mon, spec: spec}
	// defaults attach under r.mu so a concurrent Pause sees all or none
	for _, o := range r.defaults {
		mon.Register(o)
	}
	r.mu.Unlock()

	r.log.Info("registry_endpoint_added",
		zap.String("endpoint", spec.Endpoint.String()),
		zap.Duration("interval", spec.PollingInterval),
		zap.Duration("grace_period", spec.GracePeriod))
	return mon, nil
}

// Remove stops monitoring ep and invalidates its Monitor.
func (r *Registry) Remove(ctx context.Context, ep domain.Endpoint) error {
	ep = normalize(ep)
	r.mu.Lock()
	e, ok := r.entries[ep]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("remove %s: %w", ep, ErrUnknownEndpoint)
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, ep); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("delete %s: %w", ep, err)
		}
	}
	delete(r.entries, ep)
	r.mu.Unlock()

	e.mon.Invalidate()
	r.log.Info("registry_endpoint_removed", zap.String("endpoint", ep.String()))
	return nil
}

// update persists the edited definition of ep, then applies it to the monitor.
func (r *Registry) update(ctx context.Context, op string, ep domain.Endpoint,
	edit func(*domain.EndpointSpec), apply func(*monitor.Monitor)) error {
	ep = normalize(ep)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[ep]
	if !ok {
		return fmt.Errorf("%s %s: %w", op, ep, ErrUnknownEndpoint)
	}
	spec := e.spec
	edit(&spec)
	if err := r.save(ctx, spec); err != nil {
		return err
	}
	e.spec = spec
	apply(e.mon)
	return nil
}

func (r *Registry) SetPollingInterval(ctx context.Context, ep domain.Endpoint, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: polling interval must be positive, got %s", ErrInvalidConfig, d)
	}
	return r.update(ctx, "set interval", ep,
		func(s *domain.EndpointSpec) { s.PollingInterval = d },
		func(m *monitor.Monitor) { m.SetPollingInterval(d) })
}

func (r *Registry) SetGracePeriod(ctx context.Context, ep domain.Endpoint, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: grace period must not be negative, got %s", ErrInvalidConfig, d)
	}
	return r.update(ctx, "set grace", ep,
		func(s *domain.EndpointSpec) { s.GracePeriod = d },
		func(m *monitor.Monitor) { m.SetGracePeriod(d) })
}

func (r *Registry) SetOutageWindow(ctx context.Context, ep domain.Endpoint, start, end time.Time) error {
	if err := validateWindow(start, end); err != nil {
		return err
	}
	return r.update(ctx, "set outage", ep,
		func(s *domain.EndpointSpec) { s.Outage = &domain.OutageWindow{Start: start, End: end} },
		func(m *monitor.Monitor) { m.SetOutageWindow(start, end) })
}

func (r *Registry) ClearOutageWindow(ctx context.Context, ep domain.Endpoint) error {
	return r.update(ctx, "clear outage", ep,
		func(s *domain.EndpointSpec) { s.Outage = nil },
		func(m *monitor.Monitor) { m.ClearOutageWindow() })
}

func (r *Registry) lookup(op string, ep domain.Endpoint) (*entry, error) {
	ep = normalize(ep)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ep]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", op, ep, ErrUnknownEndpoint)
	}
	return e, nil
}

func (r *Registry) Register(ep domain.Endpoint, o monitor.Observer) error {
	e, err := r.lookup("register", ep)
	if err != nil {
		return err
	}
	e.mon.Register(o)
	return nil
}

func (r *Registry) Unregister(ep domain.Endpoint, o monitor.Observer) error {
	e, err := r.lookup("unregister", ep)
	if err != nil {
		return err
	}
	e.mon.Unregister(o)
	return nil
}

// Pause detaches the default observers; with no other observers the
// monitor stops probing. Pausing a paused endpoint is a no-op.
func (r *Registry) Pause(ep domain.Endpoint) error {
	return r.setPaused(ep, true)
}

func (r *Registry) Resume(ep domain.Endpoint) error {
	return r.setPaused(ep, false)
}

func (r *Registry) setPaused(ep domain.Endpoint, paused bool) error {
	ep = normalize(ep)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[ep]
	if !ok {
		op := "resume"
		if paused {
			op = "pause"
		}
		return fmt.Errorf("%s %s: %w", op, ep, ErrUnknownEndpoint)
	}
	if e.paused == paused {
		return nil
	}
	e.paused = paused
	for _, o := range r.defaults {
		if paused {
			e.mon.Unregister(o)
		} else {
			e.mon.Register(o)
		}
	}
	r.log.Info("registry_endpoint_paused", zap.String("endpoint", ep.String()), zap.Bool("paused", paused))
	return nil
}

func (r *Registry) Get(ep domain.Endpoint) (Info, error) {
	ep = normalize(ep)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ep]
	if !ok {
		return Info{}, fmt.Errorf("get %s: %w", ep, ErrUnknownEndpoint)
	}
	return e.info(), nil
}

// List returns every endpoint ordered by host then port.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Endpoint, out[j].Endpoint
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return a.Port < b.Port
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Load recreates monitors for every definition in the store. Broken
// definitions are skipped and reported together. With a status store the
// last recorded transition is shown until the monitor makes its own.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	specs, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load endpoints: %w", err)
	}
	var errs error
	for _, spec := range specs {
		mon, err := r.add(ctx, spec, false)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, r.restore(ctx, mon.Endpoint()))
	}
	r.log.Info("registry_loaded", zap.Int("endpoints", r.Len()), zap.Error(errs))
	return errs
}

func (r *Registry) restore(ctx context.Context, ep domain.Endpoint) error {
	if r.statuses == nil {
		return nil
	}
	rec, err := r.statuses.Get(ctx, ep)
	if err != nil {
		return fmt.Errorf("restore status %s: %w", ep, err)
	}
	if rec == nil {
		return nil
	}
	tr := rec.LastTransition
	r.mu.Lock()
	if e, ok := r.entries[ep]; ok {
		e.restored = &tr
	}
	r.mu.Unlock()
	return nil
}

// Seed adds specs that are not already monitored. Existing endpoints keep
// their current definition.
func (r *Registry) Seed(ctx context.Context, specs []domain.EndpointSpec) error {
	var errs error
	for _, spec := range specs {
		if _, err := r.Add(ctx, spec); err != nil && !errors.Is(err, ErrDuplicateEndpoint) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close invalidates every monitor and empties the registry. The backing
// store is left untouched so definitions survive a restart.
func (r *Registry) Close() {
	r.mu.Lock()
	mons := make([]*monitor.Monitor, 0, len(r.entries))
	for ep, e := range r.entries {
		mons = append(mons, e.mon)
		delete(r.entries, ep)
	}
	r.mu.Unlock()

	for _, m := range mons {
		m.Invalidate()
	}
	r.log.Info("registry_closed", zap.Int("endpoints", len(mons)))
}
