package models

import "time"

// OrderEvent 订单事件入账记录
//
// (order_no, source, event_kind) 唯一, 重复投递落库即为空操作。
type OrderEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderNo   string `gorm:"size:64;not null;uniqueIndex:idx_order_events_unique" json:"order_no"`
	Source    string `gorm:"size:32;not null;uniqueIndex:idx_order_events_unique" json:"source"`     // webhook/api/manual
	EventKind string `gorm:"size:32;not null;uniqueIndex:idx_order_events_unique" json:"event_kind"` // sale/cancel

	OrderStatus   string `gorm:"size:32;not null" json:"order_status"` // 原始订单状态
	Reason        string `gorm:"size:32" json:"reason"`                // 取消原因
	CustomerKey   string `gorm:"size:255;index" json:"customer_key"`
	AffiliateCode string `gorm:"size:16;index" json:"affiliate_code"` // 归因推广码, 可为空

	ProfitAmount    Money  `gorm:"type:decimal(20,2);not null;default:0" json:"profit_amount"` // 订单利润
	HasPhysicalItem bool   `gorm:"not null;default:false" json:"has_physical_item"`
	SelfPurchase    bool   `gorm:"not null;default:false" json:"self_purchase"` // 推广人自购
	Payload         string `gorm:"type:text" json:"payload"`                    // 原始报文

	ProcessStatus string     `gorm:"size:32;not null;default:pending;index" json:"process_status"`
	ProcessError  string     `gorm:"size:512" json:"process_error"`
	ProcessedAt   *time.Time `json:"processed_at"`
}

// TableName 表名
func (OrderEvent) TableName() string {
	return "order_events"
}
