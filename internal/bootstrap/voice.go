package bootstrap

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/eleven-am/careervoice/internal/conversation"
	"github.com/eleven-am/careervoice/internal/gateway"
	"github.com/eleven-am/careervoice/internal/live"
	"github.com/eleven-am/careervoice/internal/metrics"
	"github.com/eleven-am/careervoice/internal/registry"
	"github.com/eleven-am/careervoice/internal/transcript"
)

func ProvideLiveDialer(cfg *Config, logger *slog.Logger) *live.Dialer {
	return live.NewDialer(live.Config{
		Host:   cfg.LiveHost,
		Path:   cfg.LivePath,
		APIKey: cfg.LiveAPIKey,
		Model:  cfg.LiveModel,
	}, logger.With("component", "live"))
}

func ProvideConversationManager(
	dialer *live.Dialer,
	transcriptStore *transcript.Store,
	registryStore *registry.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *conversation.Manager {
	return conversation.NewManager(dialer, transcriptStore, registryStore, m, logger)
}

func ProvideGatewayHandler(manager *conversation.Manager, logger *slog.Logger) *gateway.Handler {
	return gateway.NewHandler(manager, logger)
}

var VoiceModule = fx.Options(
	fx.Provide(
		ProvideLiveDialer,
		ProvideConversationManager,
		ProvideGatewayHandler,
	),
)
