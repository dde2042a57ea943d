package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/queue"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/shopspring/decimal"
)

// OrderEventItemInput 订单行项目入参
type OrderEventItemInput struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Physical  bool            `json:"physical"`
}

// OrderEventInput 订单事件入参
//
// 利润与实物标记不信任上游字段, 由行项目在入账时推导。
type OrderEventInput struct {
	OrderNo       string                `json:"order_no"`
	Source        string                `json:"source"`
	OrderStatus   string                `json:"status"`
	CustomerKey   string                `json:"customer_key"`
	AffiliateCode string                `json:"affiliate_code"`
	Items         []OrderEventItemInput `json:"items"`
	SelfPurchase  bool                  `json:"self_purchase"`
	Payload       string                `json:"-"`
}

// OrderEventService 订单事件服务
//
// 入账与处理解耦: 事件先落库并入队, worker 再驱动佣金创建/取消。
type OrderEventService struct {
	repo              repository.OrderEventRepository
	commissionService *CommissionService
	queueClient       *queue.Client
}

// NewOrderEventService 创建订单事件服务
func NewOrderEventService(
	repo repository.OrderEventRepository,
	commissionService *CommissionService,
	queueClient *queue.Client,
) *OrderEventService {
	return &OrderEventService{
		repo:              repo,
		commissionService: commissionService,
		queueClient:       queueClient,
	}
}

// Ingest 入账订单事件
//
// (order_no, source, event_kind) 唯一, 重复投递返回已有事件且不重复
// 处理。返回值第二项表示本次是否新建。
func (s *OrderEventService) Ingest(input OrderEventInput) (*models.OrderEvent, bool, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, false, ErrOrderEventInvalid
	}
	source := normalizeEventSource(input.Source)
	status := strings.ToLower(strings.TrimSpace(input.OrderStatus))
	kind, reason := classifyOrderStatus(status)
	if kind == "" {
		return nil, false, ErrOrderEventInvalid
	}
	profit, hasPhysical, err := normalizeLineItems(kind, input.Items)
	if err != nil {
		return nil, false, err
	}

	event := &models.OrderEvent{
		OrderNo:         orderNo,
		Source:          source,
		EventKind:       kind,
		OrderStatus:     status,
		Reason:          reason,
		CustomerKey:     strings.TrimSpace(input.CustomerKey),
		AffiliateCode:   strings.ToUpper(strings.TrimSpace(input.AffiliateCode)),
		ProfitAmount:    models.NewMoneyFromDecimal(profit),
		HasPhysicalItem: hasPhysical,
		SelfPurchase:    input.SelfPurchase,
		Payload:         input.Payload,
		ProcessStatus:   constants.OrderEventProcessPending,
	}
	if err := s.repo.Create(event); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.repo.GetByUniqueKey(orderNo, source, kind)
			if getErr != nil {
				return nil, false, getErr
			}
			logger.Debugw("order_event_ingest_duplicate", "order_no", orderNo, "source", source, "event_kind", kind)
			return existing, false, nil
		}
		return nil, false, err
	}

	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueOrderEventProcess(queue.OrderEventProcessPayload{OrderEventID: event.ID}); err != nil {
			logger.Warnw("order_event_enqueue_failed", "order_event_id", event.ID, "error", err)
			return event, true, err
		}
		return event, true, nil
	}

	// 队列未启用时同步处理
	if err := s.Process(event.ID); err != nil {
		logger.Warnw("order_event_inline_process_failed", "order_event_id", event.ID, "error", err)
	}
	return event, true, nil
}

// Process 处理订单事件, 按类别分发到佣金创建或取消
func (s *OrderEventService) Process(eventID uint) error {
	event, err := s.repo.GetByID(eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrOrderEventNotFound
	}
	if event.ProcessStatus == constants.OrderEventProcessProcessed {
		logger.Debugw("order_event_process_skip_processed", "order_event_id", eventID)
		return nil
	}

	var processErr error
	switch event.EventKind {
	case constants.OrderEventKindSale:
		processErr = s.commissionService.HandleSaleEvent(event)
	case constants.OrderEventKindCancel:
		processErr = s.commissionService.CancelByOrderNo(event.OrderNo, event.Reason)
	default:
		processErr = fmt.Errorf("%w: unknown event kind %s", ErrOrderEventInvalid, event.EventKind)
	}

	now := time.Now()
	if processErr != nil {
		if markErr := s.repo.MarkProcessed(event.ID, constants.OrderEventProcessFailed, processErr.Error(), now); markErr != nil {
			logger.Warnw("order_event_mark_failed_error", "order_event_id", event.ID, "error", markErr)
		}
		return processErr
	}
	return s.repo.MarkProcessed(event.ID, constants.OrderEventProcessProcessed, "", now)
}

// GetByID 查询订单事件
func (s *OrderEventService) GetByID(id uint) (*models.OrderEvent, error) {
	return s.repo.GetByID(id)
}

// normalizeLineItems 由行项目推导订单利润与实物标记
//
// 销售事件必须带行项目; 单行利润可为负(亏本卖), 整单利润不得为负。
// 取消事件不需要行项目。
func normalizeLineItems(kind string, items []OrderEventItemInput) (decimal.Decimal, bool, error) {
	if kind != constants.OrderEventKindSale {
		return decimal.Zero, false, nil
	}
	if len(items) == 0 {
		return decimal.Zero, false, ErrOrderEventInvalid
	}
	profit := decimal.Zero
	hasPhysical := false
	for i := range items {
		item := items[i]
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return decimal.Zero, false, ErrOrderEventInvalid
		}
		if item.UnitPrice.Sign() < 0 || item.UnitCost.Sign() < 0 {
			return decimal.Zero, false, ErrOrderEventInvalid
		}
		quantity := decimal.NewFromInt(item.Quantity)
		profit = profit.Add(item.UnitPrice.Sub(item.UnitCost).Mul(quantity))
		if item.Physical {
			hasPhysical = true
		}
	}
	profit = profit.Round(2)
	if profit.Sign() < 0 {
		return decimal.Zero, false, ErrOrderEventInvalid
	}
	return profit, hasPhysical, nil
}

func normalizeEventSource(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case constants.OrderEventSourceWebhook:
		return constants.OrderEventSourceWebhook
	case constants.OrderEventSourceManual:
		return constants.OrderEventSourceManual
	default:
		return constants.OrderEventSourceAPI
	}
}

// classifyOrderStatus 将订单状态归类为销售或取消事件
func classifyOrderStatus(status string) (kind, reason string) {
	for _, s := range constants.SaleOrderStatuses {
		if s == status {
			return constants.OrderEventKindSale, ""
		}
	}
	for _, s := range constants.CancelOrderStatuses {
		if s == status {
			return constants.OrderEventKindCancel, status
		}
	}
	return "", ""
}
