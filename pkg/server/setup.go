package server

import (
	"github.com/gofiber/fiber/v2"
)

// Server wraps the fiber application.
type Server struct {
	App *fiber.App
	cfg Config
}

// NewServer builds the fiber app with correlation id handling, access
// logging and the application routes. propagator may be nil.
func NewServer(cfg Config, h *Handler, logger Logger, propagator Propagator) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "screensim",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler(logger),
	})

	if propagator != nil {
		app.Use(traceContext(propagator))
	}
	app.Use(requestID())
	app.Use(accessLog(logger))

	app.Get("/health", h.Health)
	app.Get("/health/ready", h.Ready)
	app.Post("/ingest", h.Ingest)
	app.Post("/similar", h.Similar)

	return &Server{App: app, cfg: cfg}
}
