package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/hamed0406/portwatch/internal/domain"
)

// Alert is one message about a status transition.
type Alert struct {
	Title      string
	Text       string
	Transition domain.Transition
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi sends to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, a))
	}
	return errs
}
