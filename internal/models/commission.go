package models

import "time"

// Commission 佣金台账记录
//
// status 只落 pending/paid/cancelled 三种; "可提现"是派生口径:
// pending 且 available_at 已到期。
type Commission struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AffiliateID    uint   `gorm:"not null;index;uniqueIndex:idx_commissions_unique" json:"affiliate_id"`
	OrderNo        string `gorm:"size:64;not null;index;uniqueIndex:idx_commissions_unique" json:"order_no"`
	CommissionType string `gorm:"size:32;not null;default:order;uniqueIndex:idx_commissions_unique" json:"commission_type"` // order/mlm_level1/mlm_level2
	OrderEventID   *uint  `gorm:"index" json:"order_event_id"` // 来源订单事件

	BaseAmount  Money `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`  // 计佣基数(调整后利润)
	RatePercent int64 `gorm:"not null;default:0" json:"rate_percent"`                    // 分成百分比
	Amount      Money `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`       // 佣金金额

	Status       string     `gorm:"size:32;not null;default:pending;index" json:"status"`
	AvailableAt  *time.Time `gorm:"index" json:"available_at"` // 冻结期截止时间
	CancelReason string     `gorm:"size:32" json:"cancel_reason"`

	PayoutRequestID *uint      `gorm:"index" json:"payout_request_id"` // 绑定的打款申请
	PaidAt          *time.Time `json:"paid_at"`
	ProviderBatchID string     `gorm:"size:128" json:"provider_batch_id"` // 通道批次号

	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (Commission) TableName() string {
	return "affiliate_commissions"
}

// CommissionStatusLog 佣金状态流转记录(只追加)
type CommissionStatusLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CommissionID uint   `gorm:"not null;index" json:"commission_id"`
	FromStatus   string `gorm:"size:32;not null" json:"from_status"`
	ToStatus     string `gorm:"size:32;not null" json:"to_status"`
	Reason       string `gorm:"size:255" json:"reason"`
}

// TableName 表名
func (CommissionStatusLog) TableName() string {
	return "commission_status_logs"
}

// MLMEarning 层级抽成明细(独立于佣金台账, 供报表查询)
type MLMEarning struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AffiliateID       uint   `gorm:"not null;index" json:"affiliate_id"`        // 收益人(上线)
	SourceAffiliateID uint   `gorm:"not null;index" json:"source_affiliate_id"` // 产生销售的下线
	OrderNo           string `gorm:"size:64;not null;index" json:"order_no"`
	Level             int    `gorm:"not null" json:"level"` // 1 或 2
	Amount            Money  `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
}

// TableName 表名
func (MLMEarning) TableName() string {
	return "mlm_earnings"
}
