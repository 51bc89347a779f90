package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eleven-am/careervoice/internal/conversation"
	"github.com/eleven-am/careervoice/internal/gateway"
	"github.com/eleven-am/careervoice/internal/health"
	"github.com/eleven-am/careervoice/internal/transcript"
)

const Version = "1.0.0"

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideTranscriptHandler(store *transcript.Store, logger *slog.Logger) *transcript.Handler {
	return transcript.NewHandler(store, logger)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, manager *conversation.Manager) *health.Handler {
	return health.NewHandler(db, redisClient, manager, Version)
}

type HandlerParams struct {
	fx.In

	GatewayHandler    *gateway.Handler
	TranscriptHandler *transcript.Handler
	HealthHandler     *health.Handler
	Registry          *prometheus.Registry
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api/v1")

	params.GatewayHandler.Register(api)
	params.TranscriptHandler.Register(api)
	params.HealthHandler.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{})))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideTranscriptHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
