package router

import (
	"fmt"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/cache"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	adminhandlers "github.com/canyouseeus/thelostandunfounds-sub005/internal/http/handlers/admin"
	publichandlers "github.com/canyouseeus/thelostandunfounds-sub005/internal/http/handlers/public"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cl"
	}
	redisClient := cache.Client()
	payoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payout", redisPrefix),
		WindowSeconds: cfg.Security.PayoutLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PayoutLimit.MaxAttempts,
		Message:       "error.payout_too_many",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 订单事件接入, 手工补录需管理令牌
		apiV1.POST("/webhooks/orders", publicHandler.OrderWebhook)
		apiV1.POST("/order-events", AdminAuthMiddleware(cfg.Security.AdminToken), publicHandler.SubmitOrderEvent)

		// 推广人自助接口
		affiliates := apiV1.Group("/affiliates")
		{
			affiliates.GET("/:code/balance", publicHandler.GetAffiliateBalance)
			affiliates.GET("/:code/commissions", publicHandler.ListAffiliateCommissions)
			affiliates.GET("/:code/payouts", publicHandler.ListAffiliatePayouts)
			affiliates.POST("/:code/payouts", RateLimitMiddleware(redisClient, payoutRule, KeyByPathParam("code")), publicHandler.RequestAffiliatePayout)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(AdminAuthMiddleware(cfg.Security.AdminToken))
		{
			// 推广人管理
			admin.POST("/affiliates", adminHandler.CreateAffiliate)
			admin.GET("/affiliates", adminHandler.ListAffiliates)
			admin.PUT("/affiliates/:code/status", adminHandler.UpdateAffiliateStatus)

			// 佣金台账
			admin.GET("/commissions", adminHandler.ListCommissions)
			admin.GET("/commissions/:id/logs", adminHandler.ListCommissionStatusLogs)
			admin.POST("/orders/:order_no/cancel", adminHandler.CancelOrderCommissions)

			// 打款管理
			admin.GET("/payouts", adminHandler.ListPayouts)
			admin.POST("/payouts/:id/reconcile", adminHandler.ReconcilePayout)

			// 奖池结算
			admin.POST("/pool/settle", adminHandler.SettlePool)
			admin.GET("/pool/rankings", adminHandler.GetPoolRankings)
			admin.GET("/pool/payouts", adminHandler.ListPoolPayouts)
			admin.GET("/pool/secret-santa", adminHandler.GetSecretSantaPot)

			// 人工审核告警
			admin.GET("/alerts", adminHandler.ListAlerts)
			admin.POST("/alerts/:id/resolve", adminHandler.ResolveAlert)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
