package worker

import (
	"context"
	"errors"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultPoolSettleInterval = 10 * time.Minute
	payoutReconcileInterval   = time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	poolTick time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	poolTick := defaultPoolSettleInterval
	if consumer.Config != nil && consumer.Config.Pool.SettleIntervalSeconds > 0 {
		poolTick = time.Duration(consumer.Config.Pool.SettleIntervalSeconds) * time.Second
	}
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		poolTick: poolTick,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.PoolService != nil {
		go s.runPoolSettleLoop(ctx)
	}
	if s.consumer != nil && s.consumer.PayoutService != nil {
		go s.runPayoutReconcileLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runPoolSettleLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.PoolService == nil {
		return
	}
	runOnce := func() {
		if err := s.consumer.PoolService.SettleDue(time.Now()); err != nil {
			logger.Warnw("worker_pool_settle_due_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.poolTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runPayoutReconcileLoop 兜底扫描 pending_reconcile, 防止延迟任务丢失
func (s *Service) runPayoutReconcileLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.PayoutService == nil {
		return
	}
	runOnce := func() {
		if err := s.consumer.PayoutService.ReconcileDue(time.Now()); err != nil {
			logger.Warnw("worker_payout_reconcile_due_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(payoutReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
