package usecases

import (
	"fmt"
	"log/slog"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

// SubscriptionRegistry owns the listeners registered on one geometry
// instance. The three mutation-class subscriptions are created and torn down
// together.
type SubscriptionRegistry struct {
	subs   []ports.Subscription
	logger *slog.Logger
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry(logger *slog.Logger) *SubscriptionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRegistry{logger: logger}
}

// Attach subscribes handler to every mutation class on h. A nil handle is
// ignored. If h refuses any class, the subscriptions already made are
// cancelled and the error is returned.
func (r *SubscriptionRegistry) Attach(h ports.GeometryHandle, handler func(domain.EditTrigger)) error {
	if isNilHandle(h) {
		return nil
	}

	listener := func(class domain.MutationClass, _ int) {
		handler(domain.EditTrigger(class))
	}

	created := make([]ports.Subscription, 0, len(domain.MutationClasses()))
	for _, class := range domain.MutationClasses() {
		sub, err := h.Subscribe(class, listener)
		if err != nil {
			cancelAll(created, r.logger)
			return fmt.Errorf("subscribe %s: %w", class, err)
		}
		created = append(created, sub)
	}

	r.subs = append(r.subs, created...)
	metrics.ActiveSubscriptions.Add(float64(len(created)))
	return nil
}

// DetachAll cancels every stored subscription and empties the registry.
// Cancel failures are logged and otherwise ignored.
func (r *SubscriptionRegistry) DetachAll() {
	if len(r.subs) == 0 {
		return
	}
	n := len(r.subs)
	cancelAll(r.subs, r.logger)
	r.subs = nil
	metrics.ActiveSubscriptions.Sub(float64(n))
}

// Len returns the number of active subscriptions.
func (r *SubscriptionRegistry) Len() int {
	return len(r.subs)
}

func cancelAll(subs []ports.Subscription, logger *slog.Logger) {
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if err := sub.Cancel(); err != nil {
			logger.Debug("cancel subscription", "error", err)
		}
	}
}
