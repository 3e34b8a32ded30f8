package commands

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crf-system/migrations"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции схемы БД",
	}
	cmd.AddCommand(
		migrateSubCmd("up", "Применить все миграции", migrations.Up),
		migrateSubCmd("status", "Показать состояние миграций", migrations.Status),
		migrateSubCmd("down", "Откатить последнюю миграцию", migrations.Down),
	)
	return cmd
}

func migrateSubCmd(use, short string, run func(context.Context, *pgxpool.Pool) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(pool *pgxpool.Pool, logger *zap.Logger) error {
				if err := run(cmd.Context(), pool); err != nil {
					return err
				}
				logger.Info("миграции: готово", zap.String("command", use))
				return nil
			})
		},
	}
}
