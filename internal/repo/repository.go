package repo

import (
	"context"

	"github.com/hamed0406/portwatch/internal/domain"
)

// Ports (interfaces); memory and postgres adapters implement both.

// EndpointStore keeps the catalog of monitored endpoints so it survives restarts.
type EndpointStore interface {
	// Save upserts the definition keyed by spec.Endpoint.
	Save(ctx context.Context, spec domain.EndpointSpec) error
	// Delete is a no-op for unknown endpoints.
	Delete(ctx context.Context, ep domain.Endpoint) error
	List(ctx context.Context) ([]domain.EndpointSpec, error)
}
