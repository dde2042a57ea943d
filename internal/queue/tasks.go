package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型
const (
	TaskOrderEventProcess = "order:event_process"
	TaskPayoutReconcile   = "payout:reconcile"
)

// OrderEventProcessPayload 订单事件处理任务载荷
type OrderEventProcessPayload struct {
	OrderEventID uint `json:"order_event_id"`
}

// PayoutReconcilePayload 打款对账任务载荷
type PayoutReconcilePayload struct {
	PayoutRequestID uint `json:"payout_request_id"`
}

// NewOrderEventProcessTask 创建订单事件处理任务
func NewOrderEventProcessTask(payload OrderEventProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderEventProcess, data), nil
}

// NewPayoutReconcileTask 创建打款对账任务
func NewPayoutReconcileTask(payload PayoutReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayoutReconcile, data), nil
}
