package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/drfms/drfms/internal/config"
	"github.com/drfms/drfms/internal/gateway"
	"github.com/drfms/drfms/internal/journal"
	"github.com/drfms/drfms/internal/ledger"
	"github.com/drfms/drfms/internal/metrics"
	"github.com/drfms/drfms/internal/middleware"
	"github.com/drfms/drfms/internal/notification"
	"github.com/drfms/drfms/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Session    *wallet.Session
	Deployment ledger.Deployment
	Breaker    *ledger.BreakerBackend
	Registry   *prometheus.Registry
}

// Setup configures middlewares and all application routes, and returns the
// gateway serving them.
func Setup(app *fiber.App, d Deps) (*gateway.Service, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Session == nil {
		return nil, fmt.Errorf("wallet session is required")
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	var journalRepo journal.Repository
	if d.DB != nil {
		pg := journal.NewPostgresRepository(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("prepare journal schema: %w", err)
		}
		journalRepo = pg
	} else {
		journalRepo = journal.NewMemoryRepository()
	}

	svc := gateway.NewService(d.Session, d.Deployment,
		gateway.WithNotifier(notification.NewLoggerNotifier(d.Logger)),
		gateway.WithJournal(journalRepo),
		gateway.WithMetrics(metrics.NewGateway(d.Registry)),
		gateway.WithLogger(d.Logger),
		gateway.WithLocation(d.Cfg.DateLocation),
		gateway.WithConfirmTimeout(d.Cfg.ConfirmTimeout),
		gateway.WithPollInterval(d.Cfg.ReceiptPollInterval),
	)

	RegisterHealthRoutes(app, d, svc)
	RegisterMetricsRoute(app, d.Registry)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	writes := []fiber.Handler{
		middleware.OperatorToken(d.Cfg.OperatorTokenHash),
		middleware.WriteRateLimit(d.Cache, d.Cfg.WriteRateLimit),
	}
	if d.Cache != nil {
		writes = append(writes, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterGatewayRoutes(api, gateway.NewHandler(svc), writes...)

	return svc, nil
}
