// Package service defines the common contract every aegis-sim component
// (Simulation Engine, Radar Subsystem, Command Center, Battery Controller)
// implements, in the style of the teacher's pkg/simulation.Simulation
// interface, but wired to the Event Bus rather than a remote Legion
// client.
package service

import (
	"context"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/config"
)

// Service is a component that participates in a local run of the
// simulation by publishing and subscribing on a shared Bus.
type Service interface {
	// Name returns the short identifier of the component.
	Name() string

	// Description returns a brief description of what the component does.
	Description() string

	// Configure wires the component to its shared dependencies before Run.
	Configure(cfg *config.SimulationConfig, b *bus.Bus) error

	// Run executes the component until ctx is cancelled or Stop is called.
	Run(ctx context.Context) error

	// Stop gracefully shuts down the component.
	Stop() error
}
