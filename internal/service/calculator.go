package service

import (
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/shopspring/decimal"
)

// RateConfig 分成比例, 百分比整数
type RateConfig struct {
	DirectPercent       int64
	Level1Percent       int64
	Level2Percent       int64
	PoolPercent         int64
	SelfDiscountPercent int64
}

// RatesFromConfig 从配置构造分成比例
func RatesFromConfig(cfg *config.CommissionConfig) RateConfig {
	if cfg == nil {
		return RateConfig{}
	}
	return RateConfig{
		DirectPercent:       cfg.DirectRatePercent,
		Level1Percent:       cfg.Level1RatePercent,
		Level2Percent:       cfg.Level2RatePercent,
		PoolPercent:         cfg.PoolRatePercent,
		SelfDiscountPercent: cfg.SelfDiscountPercent,
	}
}

// BreakdownInput 单笔订单分成输入
type BreakdownInput struct {
	Profit               decimal.Decimal
	SelfPurchase         bool // 推广人自购
	SelfDiscountEligible bool // 30天冷却期外
	HasReferrer          bool
	HasLevel1            bool
	HasLevel2            bool
}

// Breakdown 单笔订单分成结果, 各项金额之和恒等于 AdjustedProfit
type Breakdown struct {
	AdjustedProfit decimal.Decimal
	SelfDiscount   decimal.Decimal
	Direct         decimal.Decimal
	Level1         decimal.Decimal
	Level2         decimal.Decimal
	Pool           decimal.Decimal
	SecretSanta    decimal.Decimal
	Company        decimal.Decimal
}

// CalculateBreakdown 计算单笔订单的佣金分成
//
// 自购折扣先行扣减利润, 其余比例均按扣减后的利润计算。缺位的一级/
// 二级上线分成划入资金池; 无推广人时直推比例留存公司, 层级比例仍
// 入池。公司留存取余数, 保证合计与调整后利润严格相等。
func CalculateBreakdown(input BreakdownInput, rates RateConfig) Breakdown {
	profit := input.Profit.Round(2)

	breakdown := Breakdown{
		SelfDiscount: decimal.Zero,
		Direct:       decimal.Zero,
		Level1:       decimal.Zero,
		Level2:       decimal.Zero,
		Pool:         decimal.Zero,
		SecretSanta:  decimal.Zero,
	}

	if input.SelfPurchase && input.SelfDiscountEligible && rates.SelfDiscountPercent > 0 {
		breakdown.SelfDiscount = percentOf(profit, rates.SelfDiscountPercent)
	}
	adjusted := profit.Sub(breakdown.SelfDiscount)
	breakdown.AdjustedProfit = adjusted

	if adjusted.Sign() <= 0 {
		breakdown.Company = adjusted
		return breakdown
	}

	if input.HasReferrer {
		breakdown.Direct = percentOf(adjusted, rates.DirectPercent)
	}

	level1Amount := percentOf(adjusted, rates.Level1Percent)
	if input.HasReferrer && input.HasLevel1 {
		breakdown.Level1 = level1Amount
	} else {
		breakdown.SecretSanta = breakdown.SecretSanta.Add(level1Amount)
	}

	level2Amount := percentOf(adjusted, rates.Level2Percent)
	if input.HasReferrer && input.HasLevel2 {
		breakdown.Level2 = level2Amount
	} else {
		breakdown.SecretSanta = breakdown.SecretSanta.Add(level2Amount)
	}

	breakdown.Pool = percentOf(adjusted, rates.PoolPercent)

	breakdown.Company = adjusted.
		Sub(breakdown.Direct).
		Sub(breakdown.Level1).
		Sub(breakdown.Level2).
		Sub(breakdown.Pool).
		Sub(breakdown.SecretSanta)
	return breakdown
}

func percentOf(amount decimal.Decimal, percent int64) decimal.Decimal {
	if percent <= 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(percent)).Div(decimal.NewFromInt(100)).Round(2)
}
