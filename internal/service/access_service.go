package service

import (
	"context"
	"strings"
	"time"

	"github.com/foliodesk/internal/cache"
	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/models"
)

// UnknownBundleCategoryAccess 未知套餐类别的访问级别
// 类别缺失或无法识别时按高级套餐放行，宁可多放不可错拦
const UnknownBundleCategoryAccess = constants.PlanCategoryPremium

// SubscriptionSource 订阅清单依赖
type SubscriptionSource interface {
	ListActive(ctx context.Context, token string) ([]models.Subscription, error)
}

// BundleSource 套餐详情依赖
type BundleSource interface {
	GetByID(ctx context.Context, token, bundleID string) (*models.Bundle, error)
}

// AccessService 订阅访问级别解析服务
type AccessService struct {
	subscriptions SubscriptionSource
	bundles       BundleSource
	tokens        SessionTokens
	cache         cache.Store
	ttl           time.Duration
}

// NewAccessService 创建访问级别解析服务
func NewAccessService(subscriptions SubscriptionSource, bundles BundleSource, tokens SessionTokens, store cache.Store, ttl time.Duration) *AccessService {
	return &AccessService{
		subscriptions: subscriptions,
		bundles:       bundles,
		tokens:        tokens,
		cache:         store,
		ttl:           ttl,
	}
}

func accessCacheKey(deviceID string) string {
	return "access:resolved:" + deviceID
}

// GetAccess 返回设备当前的订阅访问级别
// 未认证或订阅拉取失败时返回零访问，拉取失败不会污染缓存
func (s *AccessService) GetAccess(ctx context.Context, deviceID string) *models.SubscriptionAccess {
	token := s.tokens.GetAccessToken(ctx, deviceID)
	if token == "" || s.tokens.IsTokenExpired(token) {
		return models.ZeroAccess()
	}

	var cached models.SubscriptionAccess
	if ok, err := s.cache.GetJSON(ctx, accessCacheKey(deviceID), &cached); err == nil && ok {
		return &cached
	}

	return s.resolve(ctx, deviceID, token)
}

// ForceRefresh 绕过缓存重新解析访问级别
func (s *AccessService) ForceRefresh(ctx context.Context, deviceID string) *models.SubscriptionAccess {
	token := s.tokens.GetAccessToken(ctx, deviceID)
	if token == "" || s.tokens.IsTokenExpired(token) {
		return models.ZeroAccess()
	}
	return s.resolve(ctx, deviceID, token)
}

// Invalidate 清除设备的访问级别缓存
// 结账成功回报之前必须先调用，保证成功页拿到的是新订阅生效后的级别
func (s *AccessService) Invalidate(ctx context.Context, deviceID string) {
	if err := s.cache.Del(ctx, accessCacheKey(deviceID)); err != nil {
		logger.Warnw("access_cache_invalidate_failed", "device", deviceID, "error", err)
	}
}

func (s *AccessService) resolve(ctx context.Context, deviceID, token string) *models.SubscriptionAccess {
	subs, err := s.subscriptions.ListActive(ctx, token)
	if err != nil {
		logger.Warnw("access_resolve_failed", "device", deviceID, "error", err)
		return models.ZeroAccess()
	}

	access := s.buildAccess(ctx, token, subs)
	if err := s.cache.SetJSON(ctx, accessCacheKey(deviceID), access, s.ttl); err != nil {
		logger.Warnw("access_cache_set_failed", "device", deviceID, "error", err)
	}
	return access
}

func (s *AccessService) buildAccess(ctx context.Context, token string, subs []models.Subscription) *models.SubscriptionAccess {
	access := models.ZeroAccess()
	for _, sub := range subs {
		if !sub.IsActive {
			continue
		}
		switch sub.ProductType {
		case constants.ProductTypeBundle:
			switch s.bundleCategory(ctx, token, &sub) {
			case constants.PlanCategoryPremium:
				access.HasPremium = true
			case constants.PlanCategoryBasic:
				access.HasBasic = true
			}
		case constants.ProductTypePortfolio:
			if sub.ProductRef != "" {
				access.PortfolioAccess = appendUnique(access.PortfolioAccess, sub.ProductRef)
			}
		}
	}
	access.Level = access.ResolveLevel()
	return access
}

// bundleCategory 解析套餐订阅的类别
// 订阅自身携带类别时直接使用，否则回查套餐详情；两者都拿不到时
// 按 UnknownBundleCategoryAccess 放行
func (s *AccessService) bundleCategory(ctx context.Context, token string, sub *models.Subscription) string {
	if category := normalizeCategory(sub.BundleCategory); category != "" {
		return category
	}

	if sub.ProductRef != "" {
		bundle, err := s.bundles.GetByID(ctx, token, sub.ProductRef)
		if err == nil {
			if category := normalizeCategory(bundle.Category); category != "" {
				return category
			}
		} else {
			logger.Warnw("access_bundle_lookup_failed", "bundle", sub.ProductRef, "error", err)
		}
	}

	logger.Warnw("access_bundle_category_unknown", "subscription", sub.ID, "bundle", sub.ProductRef)
	return UnknownBundleCategoryAccess
}

func normalizeCategory(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case constants.PlanCategoryPremium:
		return constants.PlanCategoryPremium
	case constants.PlanCategoryBasic:
		return constants.PlanCategoryBasic
	}
	return ""
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
