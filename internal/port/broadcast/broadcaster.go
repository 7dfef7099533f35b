// Package broadcast defines the port for publishing tenant lifecycle events to
// peer processes.
package broadcast

import (
	"context"
	"time"
)

// Event types published after a registry mutation commits.
const (
	EventProvisioned   = "provisioned"
	EventDeactivated   = "deactivated"
	EventActivated     = "activated"
	EventPlanChanged   = "plan_changed"
	EventDomainBound   = "domain_bound"
	EventDomainUnbound = "domain_unbound"
)

// Event describes a committed tenant or domain mutation. Hostnames lists the
// routing keys affected so that peers can evict their local cache entries.
type Event struct {
	Type      string    `json:"type"`
	TenantID  string    `json:"tenant_id"`
	Hostnames []string  `json:"hostnames,omitempty"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}

// Broadcaster publishes lifecycle events.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event) error
}

// Nop discards events. Used when running without NATS.
type Nop struct{}

// Broadcast implements Broadcaster.
func (Nop) Broadcast(context.Context, Event) error { return nil }

// Handler processes an event received from a peer process.
type Handler func(ctx context.Context, ev Event) error
