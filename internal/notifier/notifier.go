// Package notifier mirrors classified incidents to external channels: the
// automation webhook and, optionally, a Telegram staff chat. Delivery is
// best effort; see Dispatcher for the fire-and-forget contract.
package notifier

import (
	"context"
	"errors"

	"incidenbot/backend/internal/models"
)

// Notifier delivers one classified incident to an external channel.
type Notifier interface {
	Notify(ctx context.Context, analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, analysis, originalMessage, tenant); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
