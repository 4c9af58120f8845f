package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the HTTP surface. nc may be nil when eventing is
// disabled; the health check then reports NATS as skipped.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, handler *SwapHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{"nats": "skipped"}
		status := "ok"
		code := fiber.StatusOK

		if nc != nil {
			checks["nats"] = "ok"
			if !nc.IsConnected() {
				checks["nats"] = "disconnected"
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
				checks["nats"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	chain := app.Group("/:apiVersion/:chainId")
	chain.Get("/getQuote", handler.GetQuoteHandler)
	chain.Get("/getGaslessQuote", handler.GetGaslessQuoteHandler)
	chain.Get("/limitOrder/history", handler.LimitOrderHistoryHandler)
}
