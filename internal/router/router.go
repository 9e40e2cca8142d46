package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/marking-hub-api/internal/config"
	"github.com/noah-isme/marking-hub-api/internal/handler"
	"github.com/noah-isme/marking-hub-api/internal/middleware"
	"github.com/noah-isme/marking-hub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TokenHandler    *handler.TokenHandler
	MarkingHandler  *handler.MarkingHandler
	ReportHandler   *handler.ReportHandler
	TutorHandler    *handler.TutorHandler
	DeadlineHandler *handler.DeadlineHandler
	ActivityHandler *handler.ActivityHandler
	Categories      fiber.Handler
	JWTMiddleware   fiber.Handler
	TutorGate       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	tutorGate := deps.TutorGate
	if tutorGate == nil {
		tutorGate = func(c *fiber.Ctx) error { return c.Next() }
	}

	adminOnly := middleware.RequireRole(middleware.AuthRoleAdmin)

	marking := app.Group("/api/marking")

	// The delegated submission protocol carries its own authentication:
	// issuance presents the shared autograder secret, redemption the token.
	if deps.TokenHandler != nil {
		tokens := marking.Group("/tokens", middleware.RateLimit("tokens", 30, time.Minute))
		deps.TokenHandler.Register(tokens)
	}

	if deps.MarkingHandler != nil {
		submissions := marking.Group("/submissions", jwtMiddleware, tutorGate)
		deps.MarkingHandler.Register(submissions)
	}

	if deps.ReportHandler != nil {
		reports := marking.Group("/reports", jwtMiddleware)
		deps.ReportHandler.RegisterStudent(reports)
		deps.ReportHandler.RegisterTutor(reports.Group("", tutorGate))
		deps.ReportHandler.RegisterAdmin(reports.Group("", adminOnly))
	}

	if deps.Categories != nil {
		marking.Get("/categories", jwtMiddleware, tutorGate, deps.Categories)
	}

	if deps.TutorHandler != nil {
		admin := marking.Group("", jwtMiddleware, adminOnly)
		deps.TutorHandler.RegisterTutors(admin.Group("/tutors"))
		deps.TutorHandler.RegisterAssignments(admin.Group("/assignments"))
	}

	if deps.DeadlineHandler != nil {
		deadlines := marking.Group("/deadlines", jwtMiddleware)
		deps.DeadlineHandler.RegisterRead(deadlines.Group("", tutorGate))
		deps.DeadlineHandler.RegisterWrite(deadlines.Group("", adminOnly))
	}

	if deps.ActivityHandler != nil {
		activity := marking.Group("/activity", jwtMiddleware, adminOnly)
		deps.ActivityHandler.Register(activity)
	}
}
