// Package component defines the lifecycle and discovery contracts shared by
// the gateway's long-running parts.
//
// A component moves through Initialize, Start, and Stop. Initialize validates
// configuration and allocates resources, Start runs the component until its
// context is cancelled, and Stop performs a bounded graceful shutdown.
//
// Discoverable exposes metadata, ports, and health so operators can inspect
// what a running gateway is wired to.
package component
