package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebook-api/internal/config"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RosterHandler     *handler.RosterHandler
	EvaluationHandler *handler.EvaluationHandler
	TranscriptHandler *handler.TranscriptHandler
	DocumentHandler   *handler.DocumentHandler
	ExamDateHandler   *handler.ExamDateHandler
	AuthHandler       *handler.AuthHandler
	HealthChecks      []handler.DependencyCheck
	JWTMiddleware     fiber.Handler
	// StaticDir is served under cfg.StoragePublicURL when documents are stored locally.
	StaticDir string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health, auth & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	// Use provided JWT middleware, or reject every admin call when none is configured
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error {
			return fiber.ErrUnauthorized
		}
	}
	adminOnly := middleware.RequireRole(middleware.AuthRoleAdmin)

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		auth.Use("/login", middleware.RateLimit("login", cfg.LoginRateLimit, time.Minute))
		deps.AuthHandler.Register(auth)
		auth.Get("/me", jwtMiddleware, middleware.WithAuth(deps.AuthHandler.Me, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	}

	v2 := app.Group("/api/v2")

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(v2.Group("/evaluate"))
	}

	if deps.RosterHandler != nil {
		rosters := v2.Group("/rosters")
		if deps.TranscriptHandler != nil {
			deps.TranscriptHandler.Register(rosters)
		}
		deps.RosterHandler.Register(rosters)
	}

	admin := v2.Group("/admin", jwtMiddleware, adminOnly)

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterPublic(v2.Group("/documents"))
		deps.DocumentHandler.RegisterAdmin(admin.Group("/documents"))
	}

	if deps.ExamDateHandler != nil {
		deps.ExamDateHandler.RegisterPublic(v2.Group("/exam-dates"))
		deps.ExamDateHandler.RegisterAdmin(admin.Group("/exam-dates"))
	}

	if deps.StaticDir != "" && strings.HasPrefix(cfg.StoragePublicURL, "/") {
		app.Static(cfg.StoragePublicURL, deps.StaticDir, fiber.Static{ByteRange: true})
	}
}
