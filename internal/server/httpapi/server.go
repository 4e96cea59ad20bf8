// Package httpapi is the thin HTTP boundary over the core services.
package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Server wraps the fiber app and its routes.
type Server struct {
	app  *fiber.App
	addr string
}

// NewServer builds the fiber app and mounts the API routes.
func NewServer(addr, secretKey string, h *Handler) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024, // media uploads
	})

	api := app.Group("/api")
	api.Post("/entities", optionalAuth(secretKey), h.CreateEntity)
	api.Get("/entities/:id", h.GetEntity)
	api.Post("/entities/:id/media", optionalAuth(secretKey), h.AttachMedia)
	api.Post("/entities/:id/claim", requireAuth(secretKey), h.ClaimEntity)
	api.Delete("/media/:id", optionalAuth(secretKey), h.DeleteMedia)
	api.Post("/devices", requireAuth(secretKey), h.RegisterDevice)

	return &Server{app: app, addr: addr}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}
