package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebook-api/internal/config"
	"github.com/noah-isme/gradebook-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Service       string            `json:"service"`
	Environment   string            `json:"environment"`
	GradingPolicy string            `json:"grading_policy"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// DependencyCheck probes a backing service such as the database or the cache.
type DependencyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthCheck returns a handler that reports application health information.
// Any failing dependency marks the service degraded and answers 503.
func HealthCheck(cfg config.Config, checks ...DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:        "ok",
			Timestamp:     time.Now().UTC(),
			Service:       cfg.AppName,
			Environment:   cfg.AppEnv,
			GradingPolicy: cfg.GradingPolicy,
		}

		if len(checks) > 0 {
			payload.Dependencies = make(map[string]string, len(checks))
			for _, check := range checks {
				ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
				err := check.Ping(ctx)
				cancel()
				if err != nil {
					payload.Dependencies[check.Name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Dependencies[check.Name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.Unavailable(c, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
