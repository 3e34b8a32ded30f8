package commands

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crf-system/seeders"
)

func NewSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Наполнить справочники и тестовых пользователей",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(pool *pgxpool.Pool, logger *zap.Logger) error {
				return seeders.Seed(cmd.Context(), pool, logger)
			})
		},
	}
}
