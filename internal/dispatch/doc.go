// Package dispatch routes discrete commands from display surfaces to
// provisioning controllers. One controller exists per workspace; the
// dispatcher owns the registry and creates/attaches controllers on demand.
package dispatch
