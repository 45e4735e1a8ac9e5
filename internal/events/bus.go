package events

import (
	platformevents "prime_crm_backend/platform/events"
	"prime_crm_backend/platform/logger"
)

// InMemoryBus aliases the platform bus so modules only import this package.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates the in-process bus both binaries use.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
