package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/darkhorizon/internal/core/usecases"
)

// Pinger is a backing service that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sampler   *usecases.SampleService
	Elevation *usecases.ElevationService
	Search    *usecases.SearchService
	Spots     *usecases.SpotService
	// Session configures every WebSocket viewport session and the /v1/layers router.
	Session usecases.SessionConfig
	NATS    *nats.Conn
	DB      Pinger
	Cache   Pinger
}
