package commands

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crf-system/pkg/config"
	"crf-system/pkg/database/postgresql"
	applogger "crf-system/pkg/logger"
)

// NewRootCmd - служебные команды: миграции, наполнение БД, выпуск токенов.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crfadmin",
		Short:         "Администрирование CRF-системы",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(
		NewMigrateCmd(),
		NewSeedCmd(),
		NewTokenCmd(),
	)
	return cmd
}

// withDB открывает пул по конфигу и закрывает его после fn.
func withDB(ctx context.Context, fn func(pool *pgxpool.Pool, logger *zap.Logger) error) error {
	cfg := config.New()
	logger := applogger.NewLogger()
	defer func() { _ = logger.Sync() }()

	pool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool, logger)
}
