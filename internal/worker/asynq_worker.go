package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/provider"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/queue"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderEventProcess, c.handleOrderEventProcess)
	mux.HandleFunc(queue.TaskPayoutReconcile, c.handlePayoutReconcile)
}

func (c *Consumer) handleOrderEventProcess(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_event_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderEventProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_event_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderEventID == 0 {
		logger.Debugw("worker_order_event_skip_invalid_payload", "order_event_id", payload.OrderEventID)
		return nil
	}
	if c.OrderEventService == nil {
		logger.Warnw("worker_order_event_skip_service_nil", "order_event_id", payload.OrderEventID)
		return nil
	}
	if err := c.OrderEventService.Process(payload.OrderEventID); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderEventNotFound):
			logger.Debugw("worker_order_event_skip_not_found", "order_event_id", payload.OrderEventID)
			return nil
		case errors.Is(err, service.ErrOrderEventInvalid):
			// 已记为 failed, 重试也不会成功
			logger.Warnw("worker_order_event_skip_invalid", "order_event_id", payload.OrderEventID, "error", err)
			return nil
		default:
			logger.Warnw("worker_order_event_process_failed", "order_event_id", payload.OrderEventID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handlePayoutReconcile(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payout_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PayoutReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payout_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if payload.PayoutRequestID == 0 {
		logger.Debugw("worker_payout_reconcile_skip_invalid_payload", "payout_request_id", payload.PayoutRequestID)
		return nil
	}
	if c.PayoutService == nil {
		logger.Warnw("worker_payout_reconcile_skip_service_nil", "payout_request_id", payload.PayoutRequestID)
		return nil
	}
	if err := c.PayoutService.Reconcile(payload.PayoutRequestID); err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutRequestNotFound):
			logger.Debugw("worker_payout_reconcile_skip_not_found", "payout_request_id", payload.PayoutRequestID)
			return nil
		default:
			logger.Warnw("worker_payout_reconcile_failed", "payout_request_id", payload.PayoutRequestID, "error", err)
			return err
		}
	}
	return nil
}
