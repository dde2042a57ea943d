package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// AffiliateListFilter 推广人列表查询条件
type AffiliateListFilter struct {
	Code     string
	Status   string
	Keyword  string
	Page     int
	PageSize int
}

// CommissionListFilter 佣金列表查询条件
type CommissionListFilter struct {
	AffiliateID    uint
	OrderNo        string
	CommissionType string
	Status         string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Page           int
	PageSize       int
}

// PayoutListFilter 打款申请列表查询条件
type PayoutListFilter struct {
	AffiliateID uint
	Status      string
	RequestNo   string
	Page        int
	PageSize    int
}

// PoolPayoutListFilter 奖池发放列表查询条件
type PoolPayoutListFilter struct {
	StatDate    string
	AffiliateID uint
	Status      string
	Page        int
	PageSize    int
}

// AlertListFilter 告警列表查询条件
type AlertListFilter struct {
	Kind     string
	Resolved *bool
	Page     int
	PageSize int
}

// AffiliateBalanceAggregate 推广人余额汇总
type AffiliateBalanceAggregate struct {
	Available decimal.Decimal
	Pending   decimal.Decimal
	InFlight  decimal.Decimal
	Paid      decimal.Decimal
}
