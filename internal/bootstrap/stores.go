package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eleven-am/careervoice/internal/registry"
	"github.com/eleven-am/careervoice/internal/transcript"
)

func ProvideTranscriptStore(db *gorm.DB) *transcript.Store {
	return transcript.NewStore(db)
}

func ProvideRegistryStore(redisClient *redis.Client, logger *slog.Logger) *registry.Store {
	return registry.NewStore(redisClient, logger)
}

func RunMigrations(transcriptStore *transcript.Store) error {
	return transcriptStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideTranscriptStore,
		ProvideRegistryStore,
	),
	fx.Invoke(RunMigrations),
)
