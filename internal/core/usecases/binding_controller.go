package usecases

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

// Lifecycle misuse by the widget host.
var (
	ErrAlreadyAttached = errors.New("geometry already attached")
	ErrNotAttached     = errors.New("no geometry attached")
	ErrNilGeometry     = errors.New("attach without geometry")
)

// BindingState is the state of a BindingController.
type BindingState int

const (
	Detached BindingState = iota
	Attached
)

func (s BindingState) String() string {
	switch s {
	case Attached:
		return "attached"
	default:
		return "detached"
	}
}

// BindingController ties the subscription registry to the presence of a
// widget shape. One shape at a time: attach must follow a detach.
type BindingController struct {
	state      BindingState
	handle     ports.GeometryHandle
	registry   *SubscriptionRegistry
	onMutation func(domain.EditTrigger)
	logger     *slog.Logger
}

// NewBindingController creates a detached controller. onMutation is what the
// registry subscribes on attach.
func NewBindingController(registry *SubscriptionRegistry, onMutation func(domain.EditTrigger), logger *slog.Logger) *BindingController {
	if logger == nil {
		logger = slog.Default()
	}
	return &BindingController{
		registry:   registry,
		onMutation: onMutation,
		logger:     logger,
	}
}

// OnAttach handles the widget's attach notification. Attaching while already
// attached is rejected and leaves the current binding intact.
func (c *BindingController) OnAttach(h ports.GeometryHandle) error {
	if c.state == Attached {
		metrics.LifecycleRejections.WithLabelValues("already_attached").Inc()
		return ErrAlreadyAttached
	}
	if isNilHandle(h) {
		metrics.LifecycleRejections.WithLabelValues("nil_geometry").Inc()
		return ErrNilGeometry
	}

	if err := c.registry.Attach(h, c.onMutation); err != nil {
		return fmt.Errorf("attach geometry: %w", err)
	}
	c.handle = h
	c.state = Attached
	c.logger.Debug("geometry attached", "subscriptions", c.registry.Len())
	return nil
}

// OnDetach handles the widget's detach notification: every subscription is
// cancelled and the handle reference dropped.
func (c *BindingController) OnDetach() error {
	if c.state == Detached {
		metrics.LifecycleRejections.WithLabelValues("not_attached").Inc()
		return ErrNotAttached
	}

	c.registry.DetachAll()
	c.handle = nil
	c.state = Detached
	c.logger.Debug("geometry detached")
	return nil
}

// CurrentHandle returns the bound geometry, or nil while detached.
func (c *BindingController) CurrentHandle() ports.GeometryHandle {
	return c.handle
}

// State returns the current lifecycle state.
func (c *BindingController) State() BindingState {
	return c.state
}

// ActiveSubscriptions returns the registry size.
func (c *BindingController) ActiveSubscriptions() int {
	return c.registry.Len()
}
