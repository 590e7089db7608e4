// Package component defines the core interfaces for lifecycle-managed
// infrastructure services in pipekit.
//
// Components represent services that require startup, shutdown, and
// health monitoring. They are registered with a Registry (or a
// fitting.Group) for deterministic lifecycle management.
//
// # Interfaces
//
//   - Component: Core lifecycle interface (Start/Stop/Health)
//   - Describable: Startup summary descriptions
package component
