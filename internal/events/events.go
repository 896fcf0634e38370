// Package events is the inter-module publish/subscribe bus.
//
// Every publish and subscribe is checked against the calling module's
// declared contract. Delivery is fire-and-forget and at-most-once: handlers
// run behind individual failure boundaries and nothing is retried.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// CoreModule is the privileged pseudo-module used by the platform itself.
// It is exempt from contract checks.
const CoreModule = "core"

// ChannelPrefix namespaces transport channels.
const ChannelPrefix = "events:"

var (
	// ErrUndeclaredEvent is returned when a module publishes or subscribes
	// outside its declared contract.
	ErrUndeclaredEvent = errors.New("event not declared in module contract")
	// ErrUnknownModule is returned for a non-core module the contract source does not know.
	ErrUnknownModule = errors.New("module not registered")
	// ErrNotBound is returned by module calls before Bind.
	ErrNotBound = errors.New("event bus not bound to a contract source")
	// ErrAlreadyBound is returned by a second Bind.
	ErrAlreadyBound = errors.New("event bus already bound")
	// ErrInvalidEvent is returned for an empty or overlong event name or a nil handler.
	ErrInvalidEvent = errors.New("invalid event subscription")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("event bus closed")
)

// Contract is the set of events a module may publish and consume.
type Contract struct {
	Publishes  []string `json:"publishes"`
	Subscribes []string `json:"subscribes"`
}

// CanPublish reports whether event is declared in Publishes.
func (c *Contract) CanPublish(event string) bool {
	return c != nil && slices.Contains(c.Publishes, event)
}

// CanSubscribe reports whether event is declared in Subscribes.
func (c *Contract) CanSubscribe(event string) bool {
	return c != nil && slices.Contains(c.Subscribes, event)
}

// ContractSource looks up module contracts. The bool is false for modules
// that are not registered; a registered module without events returns nil, true.
type ContractSource interface {
	Contract(module string) (*Contract, bool)
}

// Envelope wraps a payload on the wire.
type Envelope struct {
	ID          string          `json:"id"`
	Event       string          `json:"event"`
	Source      string          `json:"source"`
	Tenant      string          `json:"tenant,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler consumes one delivered event.
type Handler func(ctx context.Context, env Envelope) error

// Transport moves encoded envelopes between processes. deliver may be called
// from a transport goroutine and must not block for long.
type Transport interface {
	Publish(ctx context.Context, channel string, data []byte) error
	Subscribe(ctx context.Context, channel string, deliver func(data []byte)) error
	Close() error
}

// Channel returns the transport channel for an event name.
func Channel(event string) string {
	return ChannelPrefix + event
}
