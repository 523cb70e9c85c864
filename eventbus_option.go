package tripweaver

import "github.com/ZanzyTHEbar/tripweaver-genkit/internal/eventbus"

// WithEventBus sets the event bus component.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(p *Planner) {
		p.eventBus = bus
	}
}
