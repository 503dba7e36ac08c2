package provider

import (
	"context"
	"time"

	"github.com/foliodesk/internal/cache"
	"github.com/foliodesk/internal/config"
	"github.com/foliodesk/internal/gateway"
	"github.com/foliodesk/internal/localcart"
	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/payment/razorpay"
	"github.com/foliodesk/internal/service"
	"github.com/foliodesk/internal/token"

	"github.com/redis/go-redis/v9"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	Cache       cache.Store
	RedisClient *redis.Client

	// Gateways
	UpstreamClient      *gateway.Client
	CartGateway         *gateway.CartGateway
	SubscriptionGateway *gateway.SubscriptionGateway
	BundleGateway       *gateway.BundleGateway
	AuthGateway         *gateway.AuthGateway

	// Stores
	TokenStore *token.Store
	LocalCart  *localcart.Store

	// Services
	CartService     *service.CartService
	AccessService   *service.AccessService
	CheckoutService *service.CheckoutService
}

// NewContainer 初始化容器
// Redis 不可达时退回进程内缓存，核心链路不因缓存缺位而中断
func NewContainer(cfg *config.Config) *Container {
	c := &Container{Config: cfg}

	c.initCache()
	c.initGateways()
	c.initStores()
	c.initServices()

	return c
}

func (c *Container) initCache() {
	if !c.Config.Redis.Enabled {
		logger.Infow("provider_cache_memory", "reason", "redis_disabled")
		c.Cache = cache.NewMemoryStore()
		return
	}

	redisStore := cache.NewRedisStore(&c.Config.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisStore.Client().Ping(ctx).Err(); err != nil {
		logger.Warnw("provider_redis_unreachable", "error", err)
		c.Cache = cache.NewMemoryStore()
		return
	}
	c.Cache = redisStore
	c.RedisClient = redisStore.Client()
}

func (c *Container) initGateways() {
	c.UpstreamClient = gateway.NewClient(c.Config.Upstream.BaseURL, c.Config.Upstream.Timeout())
	c.CartGateway = gateway.NewCartGateway(c.UpstreamClient)
	c.SubscriptionGateway = gateway.NewSubscriptionGateway(c.UpstreamClient)
	c.BundleGateway = gateway.NewBundleGateway(c.UpstreamClient)
	c.AuthGateway = gateway.NewAuthGateway(c.UpstreamClient)
}

func (c *Container) initStores() {
	c.TokenStore = token.NewStore(c.Cache, c.AuthGateway.Refresh)
	c.LocalCart = localcart.NewStore(c.Config.Cart.Dir, c.Config.Cart.BackupMaxBytes)
}

func (c *Container) initServices() {
	c.CartService = service.NewCartService(c.CartGateway, c.LocalCart, c.TokenStore)
	c.AccessService = service.NewAccessService(c.SubscriptionGateway, c.BundleGateway, c.TokenStore, c.Cache, c.Config.Access.CacheTTL())
	c.CheckoutService = service.NewCheckoutService(
		c.CartService,
		c.SubscriptionGateway,
		c.TokenStore,
		c.AccessService,
		&razorpay.Config{
			KeyID:      c.Config.Payment.KeyID,
			KeySecret:  c.Config.Payment.KeySecret,
			BrandName:  c.Config.Payment.BrandName,
			ThemeColor: c.Config.Payment.ThemeColor,
			Currency:   c.Config.Payment.Currency,
		},
		c.Config.Checkout.VerifyMaxAttempts,
		c.Config.Checkout.VerifyInitialBackoff(),
	)
}
