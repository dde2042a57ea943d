package provider

import (
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/cache"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/queue"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AffiliateRepo  repository.AffiliateRepository
	CommissionRepo repository.CommissionRepository
	OrderEventRepo repository.OrderEventRepository
	PayoutRepo     repository.PayoutRepository
	PoolRepo       repository.PoolRepository
	AlertRepo      repository.AlertRepository

	// Services
	AffiliateService  *service.AffiliateService
	CommissionService *service.CommissionService
	OrderEventService *service.OrderEventService
	BalanceService    *service.BalanceService
	PayoutService     *service.PayoutService
	PoolService       *service.PoolService
	AlertService      *service.AlertService
}

// NewContainer 初始化容器
//
// db 由调用方传入, 不读取任何包级共享实例。
func NewContainer(cfg *config.Config, db *gorm.DB) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(&config.QueueConfig{Enabled: false})
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.AffiliateRepo = repository.NewAffiliateRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.OrderEventRepo = repository.NewOrderEventRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.PoolRepo = repository.NewPoolRepository(db)
	c.AlertRepo = repository.NewAlertRepository(db)
}

func (c *Container) initServices() {
	payoutProvider := service.NewPaypalProvider(&c.Config.Paypal)

	c.CommissionService = service.NewCommissionService(c.CommissionRepo, c.AffiliateRepo, c.PoolRepo, c.AlertRepo, c.Config)
	c.OrderEventService = service.NewOrderEventService(c.OrderEventRepo, c.CommissionService, c.QueueClient)
	c.BalanceService = service.NewBalanceService(c.CommissionRepo, c.AffiliateRepo)
	c.PayoutService = service.NewPayoutService(c.PayoutRepo, c.CommissionRepo, c.AffiliateRepo, c.AlertRepo, payoutProvider, c.QueueClient, c.Config)
	c.PoolService = service.NewPoolService(c.PoolRepo, c.AffiliateRepo, c.AlertRepo, payoutProvider, c.Config)
	c.AffiliateService = service.NewAffiliateService(c.AffiliateRepo, c.BalanceService)
	c.AlertService = service.NewAlertService(c.AlertRepo)
}
