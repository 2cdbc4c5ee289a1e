package repo

import (
	"context"

	"github.com/hamed0406/portwatch/internal/domain"
)

// StatusRecord holds the current status of an endpoint and the transition
// that produced it. Only the latest transition is kept.
type StatusRecord struct {
	Endpoint       domain.Endpoint
	Status         domain.Status
	LastTransition domain.Transition
}

// StatusStore is implemented by a persistence layer to store current status.
type StatusStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, ep domain.Endpoint) (*StatusRecord, error)
	// Set upserts the record from tr, replacing any previous transition.
	Set(ctx context.Context, tr domain.Transition) error
}
