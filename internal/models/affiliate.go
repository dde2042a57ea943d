package models

import "time"

// Affiliate 推广人档案
type Affiliate struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code        string     `gorm:"size:16;uniqueIndex;not null" json:"code"`        // 推广码
	Email       string     `gorm:"size:255;index" json:"email"`                     // 联系邮箱
	DisplayName string     `gorm:"size:255" json:"display_name"`                    // 展示名称
	Status      string     `gorm:"size:32;not null;default:active" json:"status"`   // active/suspended
	ReferrerID  *uint      `gorm:"index" json:"referrer_id"`                        // 上线推广人ID, 顶层为空
	Referrer    *Affiliate `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`

	PayoutThreshold Money  `gorm:"type:decimal(20,2);not null;default:0" json:"payout_threshold"` // 个人提现门槛
	PayoutEmail     string `gorm:"size:255" json:"payout_email"`                                  // 打款收款账户

	RewardPoints     int64 `gorm:"not null;default:0" json:"reward_points"`     // 奖励积分
	ConversionCount  int64 `gorm:"not null;default:0" json:"conversion_count"`  // 成交次数
	MLMEarningsTotal Money `gorm:"type:decimal(20,2);not null;default:0" json:"mlm_earnings_total"` // 层级抽成累计

	LastSelfDiscountAt *time.Time `json:"last_self_discount_at"` // 最近一次自购折扣时间
}

// TableName 表名
func (Affiliate) TableName() string {
	return "affiliates"
}

// AffiliateCustomer 客户与推广人的终身绑定
type AffiliateCustomer struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CustomerKey string `gorm:"size:255;uniqueIndex;not null" json:"customer_key"` // 客户标识(邮箱哈希等)
	AffiliateID uint   `gorm:"index;not null" json:"affiliate_id"`                // 绑定的推广人
}

// TableName 表名
func (AffiliateCustomer) TableName() string {
	return "affiliate_customers"
}
