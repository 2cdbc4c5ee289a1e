package monitor

import "github.com/hamed0406/portwatch/internal/domain"

// Observer receives status transitions of a monitored endpoint.
//
// Handles are compared with == on Unregister, so implementations must be
// comparable (pointer receivers are the usual choice). Registering the same
// handle twice delivers every transition to it twice; callers own
// deduplication.
//
// StatusChanged runs outside the monitor's lock and may call back into the
// monitor (Register, Unregister, setters).
type Observer interface {
	StatusChanged(tr domain.Transition)
}

type funcObserver struct {
	f func(domain.Transition)
}

func (o *funcObserver) StatusChanged(tr domain.Transition) { o.f(tr) }

// ObserverFunc wraps f in a comparable Observer handle. Keep the returned
// value to Unregister it later; two calls with the same f yield two
// distinct handles.
func ObserverFunc(f func(domain.Transition)) Observer {
	return &funcObserver{f: f}
}
