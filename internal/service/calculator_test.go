package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func defaultTestRates() RateConfig {
	return RateConfig{
		DirectPercent:       42,
		Level1Percent:       2,
		Level2Percent:       1,
		PoolPercent:         8,
		SelfDiscountPercent: 10,
	}
}

func assertAmount(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	expected, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("parse expected %s failed: %v", want, err)
	}
	if !got.Equal(expected) {
		t.Fatalf("%s = %s, want %s", name, got.StringFixed(2), want)
	}
}

func assertBreakdownBalanced(t *testing.T, b Breakdown) {
	t.Helper()
	sum := b.Direct.Add(b.Level1).Add(b.Level2).Add(b.Pool).Add(b.SecretSanta).Add(b.Company)
	if !sum.Equal(b.AdjustedProfit) {
		t.Fatalf("breakdown sum %s != adjusted profit %s", sum.StringFixed(2), b.AdjustedProfit.StringFixed(2))
	}
}

func TestCalculateBreakdownFullChain(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:      decimal.NewFromInt(100),
		HasReferrer: true,
		HasLevel1:   true,
		HasLevel2:   true,
	}, defaultTestRates())

	assertAmount(t, "direct", b.Direct, "42")
	assertAmount(t, "level1", b.Level1, "2")
	assertAmount(t, "level2", b.Level2, "1")
	assertAmount(t, "pool", b.Pool, "8")
	assertAmount(t, "santa", b.SecretSanta, "0")
	assertAmount(t, "company", b.Company, "47")
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownMissingUplines(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:      decimal.NewFromInt(100),
		HasReferrer: true,
	}, defaultTestRates())

	assertAmount(t, "direct", b.Direct, "42")
	assertAmount(t, "level1", b.Level1, "0")
	assertAmount(t, "level2", b.Level2, "0")
	assertAmount(t, "santa", b.SecretSanta, "3")
	assertAmount(t, "company", b.Company, "47")
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownMissingLevel2Only(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:      decimal.NewFromInt(100),
		HasReferrer: true,
		HasLevel1:   true,
	}, defaultTestRates())

	assertAmount(t, "level1", b.Level1, "2")
	assertAmount(t, "level2", b.Level2, "0")
	assertAmount(t, "santa", b.SecretSanta, "1")
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownNoReferrer(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit: decimal.NewFromInt(100),
	}, defaultTestRates())

	assertAmount(t, "direct", b.Direct, "0")
	assertAmount(t, "santa", b.SecretSanta, "3")
	assertAmount(t, "pool", b.Pool, "8")
	assertAmount(t, "company", b.Company, "89")
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownSelfDiscount(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:               decimal.NewFromInt(100),
		SelfPurchase:         true,
		SelfDiscountEligible: true,
		HasReferrer:          true,
		HasLevel1:            true,
		HasLevel2:            true,
	}, defaultTestRates())

	assertAmount(t, "self discount", b.SelfDiscount, "10")
	assertAmount(t, "adjusted profit", b.AdjustedProfit, "90")
	assertAmount(t, "direct", b.Direct, "37.8")
	assertAmount(t, "level1", b.Level1, "1.8")
	assertAmount(t, "level2", b.Level2, "0.9")
	assertAmount(t, "pool", b.Pool, "7.2")
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownSelfDiscountCooldown(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:               decimal.NewFromInt(100),
		SelfPurchase:         true,
		SelfDiscountEligible: false,
		HasReferrer:          true,
		HasLevel1:            true,
		HasLevel2:            true,
	}, defaultTestRates())

	assertAmount(t, "self discount", b.SelfDiscount, "0")
	assertAmount(t, "adjusted profit", b.AdjustedProfit, "100")
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownRoundingStaysBalanced(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:      decimal.RequireFromString("33.33"),
		HasReferrer: true,
		HasLevel1:   true,
		HasLevel2:   true,
	}, defaultTestRates())
	assertBreakdownBalanced(t, b)

	b = CalculateBreakdown(BreakdownInput{
		Profit:               decimal.RequireFromString("19.99"),
		SelfPurchase:         true,
		SelfDiscountEligible: true,
		HasReferrer:          true,
	}, defaultTestRates())
	assertBreakdownBalanced(t, b)
}

func TestCalculateBreakdownZeroProfit(t *testing.T) {
	b := CalculateBreakdown(BreakdownInput{
		Profit:      decimal.Zero,
		HasReferrer: true,
		HasLevel1:   true,
		HasLevel2:   true,
	}, defaultTestRates())

	assertAmount(t, "direct", b.Direct, "0")
	assertAmount(t, "company", b.Company, "0")
	assertBreakdownBalanced(t, b)
}
