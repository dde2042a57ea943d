package models

import "time"

// KingMidasDailyStat 按天累计的推广利润统计
type KingMidasDailyStat struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AffiliateID  uint   `gorm:"not null;uniqueIndex:idx_king_midas_daily_stats_unique" json:"affiliate_id"`
	StatDate     string `gorm:"size:10;not null;index;uniqueIndex:idx_king_midas_daily_stats_unique" json:"stat_date"` // 2006-01-02
	ProfitAmount Money  `gorm:"type:decimal(20,2);not null;default:0" json:"profit_amount"`
	OrderCount   int64  `gorm:"not null;default:0" json:"order_count"`

	// 结算时回填: 当日名次与奖池分成(前三名之外分成为 0)
	Rank            int   `gorm:"not null;default:0" json:"rank"`
	PoolShareAmount Money `gorm:"type:decimal(20,2);not null;default:0" json:"pool_share_amount"`

	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (KingMidasDailyStat) TableName() string {
	return "king_midas_daily_stats"
}

// KingMidasSettlement 每日奖池结算记录, stat_date 唯一保证只结算一次
type KingMidasSettlement struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StatDate    string `gorm:"size:10;uniqueIndex;not null" json:"stat_date"`
	TotalProfit Money  `gorm:"type:decimal(20,2);not null;default:0" json:"total_profit"`
	PoolAmount  Money  `gorm:"type:decimal(20,2);not null;default:0" json:"pool_amount"`
}

// TableName 表名
func (KingMidasSettlement) TableName() string {
	return "king_midas_settlements"
}

// KingMidasPayout 奖池名次奖金发放记录
type KingMidasPayout struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StatDate     string `gorm:"size:10;not null;index" json:"stat_date"`
	AffiliateID  uint   `gorm:"not null;index" json:"affiliate_id"`
	Rank         int    `gorm:"not null" json:"rank"`          // 1/2/3
	SharePercent int64  `gorm:"not null" json:"share_percent"` // 50/30/10
	Amount       Money  `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`

	Status          string `gorm:"size:32;not null;default:pending;index" json:"status"` // pending/paid/failed
	ProviderBatchID string `gorm:"size:128" json:"provider_batch_id"`
	ProviderItemID  string `gorm:"size:128" json:"provider_item_id"`
	FailReason      string `gorm:"size:512" json:"fail_reason"`

	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (KingMidasPayout) TableName() string {
	return "king_midas_payouts"
}
