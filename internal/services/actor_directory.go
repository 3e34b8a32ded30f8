package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crf-system/internal/entities"
	"crf-system/internal/repositories"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
)

type ActorDirectoryInterface interface {
	FindActor(ctx context.Context, id uint64) (*entities.User, error)
	FindByRoleAndDepartment(ctx context.Context, role string, departmentID *uint64) ([]entities.User, error)
	Resolve(ctx context.Context, queries []entities.RecipientQuery) ([]entities.User, error)
}

// ActorDirectory - справочник пользователей с кешем в Redis (cache-aside).
// Без кеша работает напрямую с БД; ошибки Redis не прерывают запрос.
type ActorDirectory struct {
	userRepo repositories.UserRepositoryInterface
	cache    repositories.CacheRepositoryInterface
	ttl      time.Duration
	logger   *zap.Logger
}

func NewActorDirectory(
	userRepo repositories.UserRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	ttl time.Duration,
	logger *zap.Logger,
) ActorDirectoryInterface {
	return &ActorDirectory{userRepo: userRepo, cache: cache, ttl: ttl, logger: logger}
}

func (d *ActorDirectory) FindActor(ctx context.Context, id uint64) (*entities.User, error) {
	key := fmt.Sprintf(constants.CacheKeyActor, id)

	if d.cache != nil {
		var cached entities.User
		found, err := d.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			d.logger.Warn("ошибка чтения пользователя из кеша", zap.String("key", key), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	user, err := d.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.SetJSON(ctx, key, user, d.ttl); err != nil {
			d.logger.Warn("ошибка записи пользователя в кеш", zap.String("key", key), zap.Error(err))
		}
	}
	return user, nil
}

func (d *ActorDirectory) FindByRoleAndDepartment(ctx context.Context, role string, departmentID *uint64) ([]entities.User, error) {
	var dept uint64
	if departmentID != nil {
		dept = *departmentID
	}
	key := fmt.Sprintf(constants.CacheKeyRoleMembers, role, dept)

	if d.cache != nil {
		var cached []entities.User
		found, err := d.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			d.logger.Warn("ошибка чтения держателей роли из кеша", zap.String("key", key), zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	users, err := d.userRepo.FindByRole(ctx, role, departmentID)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.SetJSON(ctx, key, users, d.ttl); err != nil {
			d.logger.Warn("ошибка записи держателей роли в кеш", zap.String("key", key), zap.Error(err))
		}
	}
	return users, nil
}

// Resolve раскрывает запросы получателей в список пользователей без повторов.
// Удаленные пользователи пропускаются.
func (d *ActorDirectory) Resolve(ctx context.Context, queries []entities.RecipientQuery) ([]entities.User, error) {
	seen := make(map[uint64]struct{})
	out := make([]entities.User, 0)
	add := func(u entities.User) {
		if _, ok := seen[u.ID]; ok {
			return
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}

	for _, q := range queries {
		if q.UserID != nil {
			user, err := d.FindActor(ctx, *q.UserID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					d.logger.Warn("получатель уведомления не найден", zap.Uint64("userID", *q.UserID))
					continue
				}
				return nil, err
			}
			add(*user)
			continue
		}
		if q.Role == "" {
			continue
		}
		users, err := d.FindByRoleAndDepartment(ctx, q.Role, q.DepartmentID)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			add(u)
		}
	}
	return out, nil
}
