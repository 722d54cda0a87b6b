package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/persistence"
)

const probeTimeout = 2 * time.Second

// HealthHandler answers liveness and readiness probes. Readiness checks
// the ticket store (postgres) and the config cache (redis); the scheduler
// and platform client carry no connection state worth probing.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis}
}

// Live reports process liveness only; no dependency is consulted.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

type dependencyProbe struct {
	name string
	ping func(context.Context) error
}

// Ready reports whether the engine can serve lifecycle operations.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	probes := []dependencyProbe{
		{name: "ticket_store", ping: h.postgres.Ping},
		{name: "config_cache", ping: h.redis.Ping},
	}

	deps := fiber.Map{}
	ready := true
	for _, p := range probes {
		if err := p.ping(ctx); err != nil {
			deps[p.name] = err.Error()
			ready = false
		} else {
			deps[p.name] = "ok"
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": deps,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": deps})
}
