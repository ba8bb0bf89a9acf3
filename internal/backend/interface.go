package backend

import (
	"context"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the stores, the optional event client and a
// cleanup function releasing both.
type BackendResult struct {
	Stores ports.Stores
	// Events is nil when AMQP is disabled or the broker was unreachable at
	// startup.
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Ready reports whether the backing store answers. Backends without a
// connection are always ready.
func (r *BackendResult) Ready(ctx context.Context) error {
	if p, ok := r.Stores.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Clock stamps created_at columns; nil uses the system clock.
	Clock core.Clock
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
