package utils

import (
	"context"

	"crf-system/pkg/contextkeys"
	apperrors "crf-system/pkg/errors"
)

// GetUserIDFromCtx достает ID пользователя, записанный AuthMiddleware.
func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return 0, apperrors.ErrUserNotFound
	}
	return userID, nil
}

func WithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}
