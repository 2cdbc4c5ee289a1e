package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/repo/memory"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []Alert
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, a)
	return f.err
}

var ep = domain.Endpoint{Host: "db.internal", Port: 5432}

func tr(from, to domain.Status) domain.Transition {
	return domain.Transition{Endpoint: ep, From: from, To: to, At: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)}
}

func TestMulti_AggregatesErrors(t *testing.T) {
	a := &fakeNotifier{err: errors.New("a failed")}
	b := &fakeNotifier{}
	c := &fakeNotifier{err: errors.New("c failed")}

	err := Multi{a, nil, b, c}.Send(context.Background(), Alert{Title: "t"})
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("want 2 errors, got %d (%v)", got, err)
	}
	if len(b.msgs) != 1 {
		t.Fatal("healthy notifier should still receive the message")
	}
}

func TestTransitionObserver_Rules(t *testing.T) {
	cases := []struct {
		name       string
		recovery   bool
		tr         domain.Transition
		wantAlert  bool
		wantPrefix string
	}{
		{"up to down", true, tr(domain.StatusUp, domain.StatusDown), true, "🔴"},
		{"unknown to down", true, tr(domain.StatusUnknown, domain.StatusDown), true, "🔴"},
		{"down to up", true, tr(domain.StatusDown, domain.StatusUp), true, "🟢"},
		{"down to up, recovery off", false, tr(domain.StatusDown, domain.StatusUp), false, ""},
		{"first probe up", true, tr(domain.StatusUnknown, domain.StatusUp), false, ""},
		{"into planned outage", true, tr(domain.StatusUp, domain.StatusPlannedOut), false, ""},
		{"outage over", true, tr(domain.StatusPlannedOut, domain.StatusUp), false, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := &fakeNotifier{}
			o := NewTransitionObserver(n, AlertConfig{AlertOnRecovery: c.recovery}, zap.NewNop())
			o.StatusChanged(c.tr)
			if got := len(n.msgs) == 1; got != c.wantAlert {
				t.Fatalf("alert=%v want %v", got, c.wantAlert)
			}
			if c.wantAlert && string([]rune(n.msgs[0].Title)[0]) != c.wantPrefix {
				t.Fatalf("title %q", n.msgs[0].Title)
			}
			if c.wantAlert && n.msgs[0].Transition != c.tr {
				t.Fatalf("alert carries %+v, want %+v", n.msgs[0].Transition, c.tr)
			}
		})
	}
}

func TestTransitionObserver_DownCooldown(t *testing.T) {
	n := &fakeNotifier{}
	o := NewTransitionObserver(n, AlertConfig{Cooldown: time.Minute}, zap.NewNop())
	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))
	now = now.Add(30 * time.Second)
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))
	if len(n.msgs) != 1 {
		t.Fatalf("second DOWN within cooldown should be suppressed, got %d", len(n.msgs))
	}
	now = now.Add(time.Minute)
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))
	if len(n.msgs) != 2 {
		t.Fatalf("DOWN after cooldown should alert, got %d", len(n.msgs))
	}
}

func TestTransitionObserver_CooldownForgetsExpiredEndpoints(t *testing.T) {
	n := &fakeNotifier{}
	o := NewTransitionObserver(n, AlertConfig{Cooldown: time.Minute}, zap.NewNop())
	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	for port := 1; port <= 3; port++ {
		o.StatusChanged(domain.Transition{Endpoint: domain.Endpoint{Host: "gone.internal", Port: port}, From: domain.StatusUp, To: domain.StatusDown})
	}
	now = now.Add(2 * time.Minute)
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))

	if len(n.msgs) != 4 {
		t.Fatalf("want 4 alerts, got %d", len(n.msgs))
	}
	if got := len(o.lastDown); got != 1 {
		t.Fatalf("expired cooldown entries kept: %d", got)
	}
}

func TestTransitionObserver_NoCooldownKeepsNoState(t *testing.T) {
	n := &fakeNotifier{}
	o := NewTransitionObserver(n, AlertConfig{}, zap.NewNop())
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))
	if len(n.msgs) != 2 || len(o.lastDown) != 0 {
		t.Fatalf("msgs=%d entries=%d", len(n.msgs), len(o.lastDown))
	}
}

func TestTransitionObserver_SendErrorIsSwallowed(t *testing.T) {
	n := &fakeNotifier{err: errors.New("boom")}
	o := NewTransitionObserver(n, AlertConfig{}, zap.NewNop())
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))
	if len(n.msgs) != 1 {
		t.Fatal("expected one attempt")
	}
}

func TestStoreObserver_RecordsLatest(t *testing.T) {
	st := memory.New()
	o := &StoreObserver{Store: st, Log: zap.NewNop()}

	o.StatusChanged(tr(domain.StatusUnknown, domain.StatusUp))
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))

	rec, err := st.Get(context.Background(), ep)
	if err != nil || rec == nil {
		t.Fatalf("get: %+v %v", rec, err)
	}
	if rec.Status != domain.StatusDown || rec.LastTransition.From != domain.StatusUp {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestLogObserver(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	o := &LogObserver{Log: zap.New(core)}
	o.StatusChanged(tr(domain.StatusUp, domain.StatusDown))

	entries := logs.FilterMessage("endpoint_transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["endpoint"] != "db.internal:5432" || fields["to"] != "DOWN" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
