package models

import "time"

// SecretSantaPot 缺位上线分成的归集资金池(按年一行)
type SecretSantaPot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	Year          int   `gorm:"uniqueIndex;not null" json:"year"`
	BalanceAmount Money `gorm:"type:decimal(20,2);not null;default:0" json:"balance_amount"`
}

// TableName 表名
func (SecretSantaPot) TableName() string {
	return "secret_santa_pots"
}

// SecretSantaContribution 资金池入账明细
//
// (order_no, level) 唯一: 同一订单经多个来源重放时, 每个缺位层级只入账一次。
type SecretSantaContribution struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Year        int    `gorm:"not null;index" json:"year"`
	OrderNo     string `gorm:"size:64;not null;uniqueIndex:idx_secret_santa_contributions_unique" json:"order_no"`
	AffiliateID *uint  `gorm:"index" json:"affiliate_id"`                                               // 产生销售的推广人, 可为空
	Level       int    `gorm:"not null;uniqueIndex:idx_secret_santa_contributions_unique" json:"level"` // 缺位的层级: 1 或 2
	Amount      Money  `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
}

// TableName 表名
func (SecretSantaContribution) TableName() string {
	return "secret_santa_contributions"
}
