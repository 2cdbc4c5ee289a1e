package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/repo"
)

var _ repo.EndpointStore = (*Store)(nil)
var _ repo.StatusStore = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	endpoints map[domain.Endpoint]domain.EndpointSpec
	statuses  map[domain.Endpoint]repo.StatusRecord
}

func New() *Store {
	return &Store{
		endpoints: make(map[domain.Endpoint]domain.EndpointSpec),
		statuses:  make(map[domain.Endpoint]repo.StatusRecord),
	}
}

// ---- EndpointStore ----

func (m *Store) Save(ctx context.Context, spec domain.EndpointSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.endpoints[spec.Endpoint]; ok {
		spec.CreatedAt = prev.CreatedAt
	} else if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now().UTC()
	}
	if spec.Outage != nil {
		w := *spec.Outage
		spec.Outage = &w
	}
	m.endpoints[spec.Endpoint] = spec
	return nil
}

func (m *Store) Delete(ctx context.Context, ep domain.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.endpoints, ep)
	delete(m.statuses, ep)
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.EndpointSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.EndpointSpec, 0, len(m.endpoints))
	for _, s := range m.endpoints {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Endpoint.String() < out[j].Endpoint.String()
	})
	return out, nil
}

// ---- StatusStore ----

func (m *Store) Get(ctx context.Context, ep domain.Endpoint) (*repo.StatusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.statuses[ep]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, tr domain.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[tr.Endpoint] = repo.StatusRecord{
		Endpoint:       tr.Endpoint,
		Status:         tr.To,
		LastTransition: tr,
	}
	return nil
}
