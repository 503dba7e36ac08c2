package router

import (
	"fmt"
	"strings"

	"github.com/foliodesk/internal/config"
	publichandlers "github.com/foliodesk/internal/http/handlers/public"
	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fd"
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	apiV1.Use(DeviceIDMiddleware())
	{
		session := apiV1.Group("/session")
		{
			session.GET("", publicHandler.GetSession)
			session.POST("", publicHandler.CreateSession)
			session.POST("/refresh", publicHandler.RefreshSession)
			session.DELETE("", publicHandler.DeleteSession)
		}

		cart := apiV1.Group("/cart")
		{
			cart.GET("", publicHandler.GetCart)
			cart.POST("/items", publicHandler.AddToCart)
			cart.PUT("/items/:product_ref", publicHandler.UpdateQuantity)
			cart.DELETE("/items/:product_ref", publicHandler.RemoveFromCart)
			cart.DELETE("", publicHandler.ClearCart)
		}

		apiV1.GET("/access", publicHandler.GetAccess)

		checkout := apiV1.Group("/checkout")
		{
			checkout.POST("", RateLimitMiddleware(c.RedisClient, checkoutRule, KeyByDevice), publicHandler.BeginCheckout)
			checkout.GET("/pending-emandate", publicHandler.GetPendingEmandate)
			checkout.GET("/:attempt_id", publicHandler.GetCheckout)
			checkout.POST("/:attempt_id/confirm", RateLimitMiddleware(c.RedisClient, checkoutRule, KeyByDevice), publicHandler.ConfirmCheckout)
			checkout.POST("/:attempt_id/complete", publicHandler.CompleteCheckout)
			checkout.POST("/:attempt_id/cancel", publicHandler.CancelCheckout)
			checkout.POST("/:attempt_id/retry", publicHandler.RetryCheckout)
		}
	}

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
