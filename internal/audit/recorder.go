package audit

import (
	"context"
	"fmt"

	"tenantplane/internal/events"
)

// Subscribe records every tracked event on bus. It subscribes as the core
// module, so it can run before the bus is bound to the module registry.
func (p *Publisher) Subscribe(ctx context.Context, bus *events.Bus) error {
	for _, event := range TrackedEvents {
		if err := bus.Subscribe(ctx, events.CoreModule, event, p.record); err != nil {
			return fmt.Errorf("audit %s: %w", event, err)
		}
	}
	return nil
}

func (p *Publisher) record(ctx context.Context, env events.Envelope) error {
	var subject struct {
		Tenant string `json:"tenant"`
		Module string `json:"module"`
	}
	if err := env.Decode(&subject); err != nil {
		return err
	}
	return p.Emit(ctx, Event{
		ID:        env.ID,
		Timestamp: env.PublishedAt,
		Tenant:    subject.Tenant,
		Action:    env.Event,
		Module:    subject.Module,
		Source:    env.Source,
	})
}
