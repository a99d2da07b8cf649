package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/drfms/drfms/internal/gateway"
)

// RegisterGatewayRoutes wires the ledger gateway endpoints. writeGuards run
// in front of every state-changing route.
func RegisterGatewayRoutes(r fiber.Router, h *gateway.Handler, writeGuards ...fiber.Handler) {
	guarded := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, writeGuards...), handler)
	}

	r.Get("/session", h.Session)
	r.Post("/session/connect", h.Connect)

	r.Get("/funds/:address", h.SearchFund)
	r.Post("/funds", guarded(h.RegisterFund)...)
	r.Delete("/funds/:address", guarded(h.CloseFund)...)

	r.Post("/funds/:address/donations", guarded(h.Donate)...)
	r.Get("/donations/in-progress", h.InProgress)
	r.Get("/donations/:hash", h.Transaction)

	r.Post("/funds/:address/usage", guarded(h.AddUsage)...)
	r.Get("/funds/:address/usage", h.ListUsage)

	r.Get("/journal", h.Journal)
}
