package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"crf-system/pkg/config"
	"crf-system/pkg/service"
)

// NewTokenCmd выпускает access-токен для локальной разработки.
// В бою токены выдает система авторизации организации.
func NewTokenCmd() *cobra.Command {
	var withRefresh bool

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Выпустить JWT для пользователя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || userID == 0 {
				return fmt.Errorf("неверный ID пользователя: %q", args[0])
			}

			cfg := config.New()
			jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
			access, refresh, err := jwtSvc.GenerateTokens(userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, access)
			if withRefresh {
				fmt.Fprintln(out, refresh)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withRefresh, "refresh", false, "Вывести также refresh-токен")
	return cmd
}
