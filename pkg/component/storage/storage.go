// Package storage defines the common interface shared by storage backends.
package storage

import "context"

// HealthChecker is a function that reports backend health.
type HealthChecker func() error

// Client is the base interface implemented by all storage clients.
type Client interface {
	// Name returns the backend name, e.g. "postgres" or "sqlite".
	Name() string

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Health returns a HealthChecker bound to this client.
	Health() HealthChecker

	// Close releases the underlying connection resources.
	Close() error
}
