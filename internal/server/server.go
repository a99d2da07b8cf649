package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/drfms/drfms/internal/config"
	"github.com/drfms/drfms/internal/gateway"
	"github.com/drfms/drfms/internal/routes"
)

// Server wraps the Fiber application and the gateway it serves.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	gateway *gateway.Service
	logger  *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// WriteTimeout leaves room for a donation to be confirmed within the request.
func New(d routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      d.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: d.Cfg.ConfirmTimeout + 30*time.Second,
		ErrorHandler: errorHandler,
	})

	svc, err := routes.Setup(app, d)
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: d.Cfg, gateway: svc, logger: d.Logger}, nil
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then waits for background donation
// confirmations until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.gateway.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown before donations settled", "pending", s.gateway.PendingDonations())
		return ctx.Err()
	}
}

// errorHandler renders transport-level errors in the same envelope as gateway errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	message := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{"kind": kindForStatus(code), "message": message},
	})
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "route_not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if code < http.StatusInternalServerError {
			return "request_rejected"
		}
		return "internal"
	}
}
