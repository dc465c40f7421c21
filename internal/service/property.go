package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ethio-home/internal/core/cache"
	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
)

var propertyCache = cache.Entry[domain.Property]{Prefix: "property", TTL: 5 * time.Minute, Miss: domain.ErrNotFound}

func PropertyCacheKey(id string) string { return propertyCache.Key(id) }

type PropertyService struct {
	Props *repo.PropertyRepo
	Cache *cache.Cache
	Log   *zap.Logger
	Now   func() time.Time
}

func NewPropertyService(props *repo.PropertyRepo, c *cache.Cache, l *zap.Logger) *PropertyService {
	return &PropertyService{Props: props, Cache: c, Log: l}
}

// Get 详情读缓存；未启用 Redis 时直接查库
func (s *PropertyService) Get(ctx context.Context, id string) (*domain.Property, error) {
	p, err := propertyCache.Get(ctx, s.Cache, id, func(ctx context.Context) (*domain.Property, error) {
		return s.Props.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *PropertyService) Invalidate(ctx context.Context, ids ...string) {
	if err := propertyCache.Forget(ctx, s.Cache, ids...); err != nil {
		s.Log.Warn("invalidate property cache failed", zap.Strings("ids", ids), zap.Error(err))
	}
}

// Verify 员工审核房源
func (s *PropertyService) Verify(ctx context.Context, id, staffID string) (*domain.Property, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if err := s.Props.MarkVerified(ctx, id, staffID, now); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)
	s.Log.Info("property verified", zap.String("property_id", id), zap.String("user_id", staffID))
	return s.Props.FindByID(ctx, id)
}

func (s *PropertyService) Pending(ctx context.Context, offset, limit int) ([]domain.Property, int64, error) {
	return s.Props.ListPending(ctx, offset, limit)
}
