package constants

// 佣金状态
const (
	CommissionStatusPending   = "pending"   // 待解冻/待打款
	CommissionStatusPaid      = "paid"      // 已打款(终态)
	CommissionStatusCancelled = "cancelled" // 已取消(终态)
)

// 佣金类型
const (
	CommissionTypeOrder     = "order"      // 直推销售佣金
	CommissionTypeMLMLevel1 = "mlm_level1" // 一级上线抽成
	CommissionTypeMLMLevel2 = "mlm_level2" // 二级上线抽成
)

// 推广人状态
const (
	AffiliateStatusActive    = "active"
	AffiliateStatusSuspended = "suspended"
)

// 订单事件类别
const (
	OrderEventKindSale   = "sale"
	OrderEventKindCancel = "cancel"
)

// 订单事件来源
const (
	OrderEventSourceWebhook = "webhook"
	OrderEventSourceAPI     = "api"
	OrderEventSourceManual  = "manual"
)

// 订单事件处理状态
const (
	OrderEventProcessPending   = "pending"
	OrderEventProcessProcessed = "processed"
	OrderEventProcessFailed    = "failed"
)

// 触发佣金创建的订单状态
var SaleOrderStatuses = []string{"created", "fulfilled", "paid", "confirmed"}

// 触发佣金取消的订单状态
var CancelOrderStatuses = []string{"cancelled", "refunded", "disputed", "chargeback"}

// 佣金取消原因
const (
	CancelReasonCancelled  = "cancelled"
	CancelReasonRefunded   = "refunded"
	CancelReasonDisputed   = "disputed"
	CancelReasonChargeback = "chargeback"
	CancelReasonFraud      = "fraud"
	CancelReasonManual     = "manual"
)

// 打款申请状态
const (
	PayoutStatusApproved         = "approved"          // 已锁定佣金, 待调用通道
	PayoutStatusPaid             = "paid"              // 通道确认成功
	PayoutStatusFailed           = "failed"            // 通道明确失败, 佣金已释放
	PayoutStatusPendingReconcile = "pending_reconcile" // 通道结果未知, 等待对账
	PayoutStatusManualReview     = "manual_review"     // 自动对账无法推进, 转人工
)

// 奖池打款状态
const (
	PoolPayoutStatusPending = "pending" // 无收款账户, 等待人工处理
	PoolPayoutStatusPaid    = "paid"
	PoolPayoutStatusFailed  = "failed"
)

// 奖池名次分成比例(百分比), 其余部分滚存不分配
var PoolSharePercents = []int64{50, 30, 10}

// 人工审核告警类别
const (
	AlertKindPaidCommissionCancel = "paid_commission_cancel"
	AlertKindPayoutProviderFailed = "payout_provider_failed"
	AlertKindPoolProviderFailed   = "pool_provider_failed"
)

// 默认结算币种
const DefaultPayoutCurrency = "USD"

// Redis key 前缀
const RedisPrefixDefault = "cl"

// 默认队列名称
const QueueDefault = "default"

// 日期归档格式 (奖池按天统计)
const StatDateLayout = "2006-01-02"
