package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"crf-system/internal/dto"
	"crf-system/internal/repositories"
)

const cacheKeyCategories = "crf_categories"

type ReferenceServiceInterface interface {
	ListCategories(ctx context.Context) ([]dto.CategoryDTO, error)
}

// ReferenceService отдает справочники для формы создания заявки.
type ReferenceService struct {
	repo   repositories.ReferenceRepositoryInterface
	cache  repositories.CacheRepositoryInterface
	ttl    time.Duration
	logger *zap.Logger
}

func NewReferenceService(
	repo repositories.ReferenceRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	ttl time.Duration,
	logger *zap.Logger,
) ReferenceServiceInterface {
	return &ReferenceService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func (s *ReferenceService) ListCategories(ctx context.Context) ([]dto.CategoryDTO, error) {
	if s.cache != nil {
		var cached []dto.CategoryDTO
		found, err := s.cache.GetJSON(ctx, cacheKeyCategories, &cached)
		if err != nil {
			s.logger.Warn("ошибка чтения категорий из кеша", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CategoryDTO, 0, len(categories))
	for i := range categories {
		out = append(out, CategoryToDTO(&categories[i]))
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKeyCategories, out, s.ttl); err != nil {
			s.logger.Warn("ошибка записи категорий в кеш", zap.Error(err))
		}
	}
	return out, nil
}
