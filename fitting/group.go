package fitting

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/pipekit/component"
	"github.com/kbukum/pipekit/logger"
)

// Group runs a set of components as one dataflow topology. Members start
// in registration order and stop in reverse, so register producers after
// the consumers they feed: on shutdown the producers stop first and their
// sentinels flow downstream before the consumers are cancelled.
//
// A Group is itself a component, so topologies can nest.
type Group struct {
	name     string
	registry *component.Registry
	log      *logger.Logger

	mu      sync.Mutex
	started bool
}

// NewGroup creates an empty group.
func NewGroup(name string, log *logger.Logger) *Group {
	return &Group{
		name:     name,
		registry: component.NewRegistry(),
		log: logger.OrNop(log).WithComponent("group").WithFields(map[string]interface{}{
			logger.FieldFlow: name,
		}),
	}
}

// Add registers members in start order. It fails on the first duplicate
// name and registers nothing further.
func (g *Group) Add(members ...component.Component) error {
	for _, m := range members {
		if err := g.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Start starts every member in registration order. The first failure
// stops the members already started, in reverse order, before returning.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return nil
	}
	g.logMembers()
	if err := g.registry.StartAll(ctx); err != nil {
		// StartAll leaves earlier members marked started; unwind them.
		if stopErr := g.registry.StopAll(ctx); stopErr != nil {
			g.log.Warn("Unwinding partially started group failed", logger.Fields(
				logger.FieldError, stopErr.Error(),
			))
		}
		return err
	}
	g.started = true
	g.log.Info("Group started", logger.Fields("members", len(g.registry.All())))
	return nil
}

// Stop stops every member in reverse registration order, collecting
// failures rather than aborting on the first.
func (g *Group) Stop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return nil
	}
	g.started = false
	err := g.registry.StopAll(ctx)
	if err != nil {
		return err
	}
	g.log.Info("Group stopped")
	return nil
}

// Health aggregates member health: unhealthy dominates, then degraded.
func (g *Group) Health(ctx context.Context) component.Health {
	status := component.StatusHealthy
	message := ""
	for _, h := range g.registry.HealthAll(ctx) {
		switch h.Status {
		case component.StatusUnhealthy:
			return component.Health{
				Name:    g.name,
				Status:  component.StatusUnhealthy,
				Message: fmt.Sprintf("%s: %s", h.Name, h.Message),
			}
		case component.StatusDegraded:
			status = component.StatusDegraded
			if message == "" {
				message = fmt.Sprintf("%s: %s", h.Name, h.Message)
			}
		}
	}
	return component.Health{Name: g.name, Status: status, Message: message}
}

// Get returns a member by name, or nil.
func (g *Group) Get(name string) component.Component {
	return g.registry.Get(name)
}

// Members returns the members in registration order.
func (g *Group) Members() []component.Component {
	return g.registry.All()
}

// logMembers writes the startup summary for members that describe
// themselves.
func (g *Group) logMembers() {
	for _, m := range g.registry.All() {
		d, ok := m.(component.Describable)
		if !ok {
			continue
		}
		desc := d.Describe()
		if desc.Name == "" {
			desc.Name = m.Name()
		}
		g.log.Info("Member", logger.Fields(
			"name", desc.Name,
			"type", desc.Type,
			"details", desc.Details,
		))
	}
}

var _ component.Component = (*Group)(nil)
