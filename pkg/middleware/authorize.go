package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/utils"
)

// ActorLookup - откуда брать роли пользователя.
type ActorLookup interface {
	FindActor(ctx context.Context, id uint64) (*entities.User, error)
}

// AuthorizeAny пропускает запрос, если у пользователя есть хотя бы одна из ролей.
// Ставится после Auth.
func AuthorizeAny(actors ActorLookup, logger *zap.Logger, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqCtx := c.Request().Context()
			userID, err := utils.GetUserIDFromCtx(reqCtx)
			if err != nil {
				return utils.ErrorResponse(c, err, logger)
			}

			actor, err := actors.FindActor(reqCtx, userID)
			if err != nil {
				return utils.ErrorResponse(c, apperrors.ErrUnauthorized, logger)
			}
			if !actor.HasAnyRole(roles...) {
				logger.Warn("AuthorizeAny: доступ запрещен",
					zap.Uint64("userID", userID),
					zap.Strings("required", roles),
					zap.Strings("roles", actor.Roles),
				)
				return utils.ErrorResponse(c, apperrors.ErrUnauthorized, logger)
			}
			return next(c)
		}
	}
}
