// Package webapi exposes the HTTP surface of the back-office engine on Fiber.
package webapi

import (
	"time"

	"github.com/finwire/backoffice/pkg/provider"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/confirmqueue"
	"github.com/finwire/backoffice/pkg/service/operation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Operations *operation.Service
	Confirm    *confirmqueue.Service
	Gateway    provider.PaymentGateway
	Uow        repository.UnitOfWork
	Registry   *prometheus.Registry
}

// NewApp builds the Fiber application with all routes registered.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})

	app.Use(limiter.New(limiter.Config{
		Max:        50,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
		},
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(Response{Status: fiber.StatusOK, Message: "OK"})
	})

	if deps.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(
			deps.Registry,
			promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError},
		)))
	} else {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	OperationRoutes(app, deps.Operations, deps.Uow)
	WebhookRoutes(app, deps.Operations, deps.Gateway, deps.Confirm, deps.Uow)

	return app
}
