package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/payment/paypal"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newPoolTestService(env *testEnv, provider PayoutProvider) *PoolService {
	return NewPoolService(env.poolRepo, env.affiliateRepo, env.alertRepo, provider, env.cfg)
}

func createDailyStatTest(t *testing.T, db *gorm.DB, affiliateID uint, statDate, profit string) {
	t.Helper()
	amount, err := decimal.NewFromString(profit)
	if err != nil {
		t.Fatalf("parse profit failed: %v", err)
	}
	stat := &models.KingMidasDailyStat{
		AffiliateID:  affiliateID,
		StatDate:     statDate,
		ProfitAmount: models.NewMoneyFromDecimal(amount),
		OrderCount:   1,
	}
	if err := db.Create(stat).Error; err != nil {
		t.Fatalf("create daily stat failed: %v", err)
	}
}

func poolSuccessResult(batchID, statDate string, ranks ...int) *paypal.BatchResult {
	result := &paypal.BatchResult{BatchID: batchID, BatchStatus: "SUCCESS"}
	for _, rank := range ranks {
		result.Items = append(result.Items, paypal.BatchItemResult{
			ItemID:            fmt.Sprintf("ITEM-%d", rank),
			SenderItemID:      fmt.Sprintf("KM-%s-%d", statDate, rank),
			TransactionStatus: "SUCCESS",
		})
	}
	return result
}

func TestSettleDateDistributesTopThree(t *testing.T) {
	env := newTestEnv(t, "pool_top_three")
	statDate := "2026-08-27"
	provider := &fakeProvider{createResult: poolSuccessResult("KM-BATCH-1", statDate, 1, 2, 3)}
	svc := newPoolTestService(env, provider)

	first := createAffiliateTest(t, env.db, "POOLTOP1", nil)
	second := createAffiliateTest(t, env.db, "POOLTOP2", nil)
	third := createAffiliateTest(t, env.db, "POOLTOP3", nil)
	fourth := createAffiliateTest(t, env.db, "POOLTOP4", nil)
	createDailyStatTest(t, env.db, first.ID, statDate, "400")
	createDailyStatTest(t, env.db, second.ID, statDate, "300")
	createDailyStatTest(t, env.db, third.ID, statDate, "200")
	createDailyStatTest(t, env.db, fourth.ID, statDate, "100")

	settlement, err := svc.SettleDate(statDate)
	if err != nil {
		t.Fatalf("SettleDate failed: %v", err)
	}
	if settlement.TotalProfit.String() != "1000.00" {
		t.Fatalf("total profit = %s, want 1000.00", settlement.TotalProfit.String())
	}
	if settlement.PoolAmount.String() != "80.00" {
		t.Fatalf("pool amount = %s, want 80.00", settlement.PoolAmount.String())
	}

	var payouts []models.KingMidasPayout
	if err := env.db.Where("stat_date = ?", statDate).Order("rank asc").Find(&payouts).Error; err != nil {
		t.Fatalf("fetch pool payouts failed: %v", err)
	}
	if len(payouts) != 3 {
		t.Fatalf("pool payouts = %d, want 3", len(payouts))
	}

	wantAmounts := []string{"40.00", "24.00", "8.00"}
	wantAffiliates := []uint{first.ID, second.ID, third.ID}
	allocated := decimal.Zero
	for i, payout := range payouts {
		if payout.AffiliateID != wantAffiliates[i] {
			t.Fatalf("rank %d affiliate = %d, want %d", i+1, payout.AffiliateID, wantAffiliates[i])
		}
		if payout.Amount.String() != wantAmounts[i] {
			t.Fatalf("rank %d amount = %s, want %s", i+1, payout.Amount.String(), wantAmounts[i])
		}
		if payout.Status != constants.PoolPayoutStatusPaid {
			t.Fatalf("rank %d status = %s, want paid", i+1, payout.Status)
		}
		if payout.ProviderBatchID != "KM-BATCH-1" {
			t.Fatalf("rank %d batch id = %s, want KM-BATCH-1", i+1, payout.ProviderBatchID)
		}
		allocated = allocated.Add(payout.Amount.Decimal)
	}
	// 剩余 10% 滚存不分配
	if !allocated.Equal(decimal.NewFromInt(72)) {
		t.Fatalf("allocated = %s, want 72", allocated.StringFixed(2))
	}

	// 名次与奖池分成回填到当日统计, 前三名之外分成为 0
	var stats []models.KingMidasDailyStat
	if err := env.db.Where("stat_date = ?", statDate).Order("rank asc").Find(&stats).Error; err != nil {
		t.Fatalf("fetch daily stats failed: %v", err)
	}
	if len(stats) != 4 {
		t.Fatalf("daily stats = %d, want 4", len(stats))
	}
	wantShares := []string{"40.00", "24.00", "8.00", "0.00"}
	for i, stat := range stats {
		if stat.Rank != i+1 {
			t.Fatalf("stat %d rank = %d, want %d", i, stat.Rank, i+1)
		}
		if stat.PoolShareAmount.String() != wantShares[i] {
			t.Fatalf("rank %d pool share = %s, want %s", i+1, stat.PoolShareAmount.String(), wantShares[i])
		}
	}
}

func TestSettleDateRunOnce(t *testing.T) {
	env := newTestEnv(t, "pool_run_once")
	statDate := "2026-08-27"
	provider := &fakeProvider{createResult: poolSuccessResult("KM-BATCH-2", statDate, 1)}
	svc := newPoolTestService(env, provider)

	seller := createAffiliateTest(t, env.db, "POOLONE1", nil)
	createDailyStatTest(t, env.db, seller.ID, statDate, "500")

	if _, err := svc.SettleDate(statDate); err != nil {
		t.Fatalf("first SettleDate failed: %v", err)
	}
	if _, err := svc.SettleDate(statDate); !errors.Is(err, ErrPoolAlreadySettled) {
		t.Fatalf("second SettleDate err = %v, want ErrPoolAlreadySettled", err)
	}
	if provider.createCalls != 1 {
		t.Fatalf("provider create calls = %d, want 1", provider.createCalls)
	}

	var payoutCount int64
	if err := env.db.Model(&models.KingMidasPayout{}).Where("stat_date = ?", statDate).Count(&payoutCount).Error; err != nil {
		t.Fatalf("count pool payouts failed: %v", err)
	}
	if payoutCount != 1 {
		t.Fatalf("pool payouts = %d, want 1", payoutCount)
	}
}

func TestSettleDateNoDestinationStaysPending(t *testing.T) {
	env := newTestEnv(t, "pool_no_destination")
	statDate := "2026-08-27"
	provider := &fakeProvider{createResult: poolSuccessResult("KM-BATCH-3", statDate, 2)}
	svc := newPoolTestService(env, provider)

	first := createAffiliateTest(t, env.db, "NODEST01", nil)
	first.PayoutEmail = ""
	if err := env.db.Save(first).Error; err != nil {
		t.Fatalf("clear payout email failed: %v", err)
	}
	second := createAffiliateTest(t, env.db, "NODEST02", nil)
	createDailyStatTest(t, env.db, first.ID, statDate, "300")
	createDailyStatTest(t, env.db, second.ID, statDate, "200")

	if _, err := svc.SettleDate(statDate); err != nil {
		t.Fatalf("SettleDate failed: %v", err)
	}

	var payouts []models.KingMidasPayout
	if err := env.db.Where("stat_date = ?", statDate).Order("rank asc").Find(&payouts).Error; err != nil {
		t.Fatalf("fetch pool payouts failed: %v", err)
	}
	if len(payouts) != 2 {
		t.Fatalf("pool payouts = %d, want 2", len(payouts))
	}
	if payouts[0].Status != constants.PoolPayoutStatusPending {
		t.Fatalf("rank 1 status = %s, want pending", payouts[0].Status)
	}
	if payouts[1].Status != constants.PoolPayoutStatusPaid {
		t.Fatalf("rank 2 status = %s, want paid", payouts[1].Status)
	}
}

func TestSettleDateProviderFailure(t *testing.T) {
	env := newTestEnv(t, "pool_provider_failure")
	statDate := "2026-08-27"
	provider := &fakeProvider{createErr: fmt.Errorf("%w: bad credentials", paypal.ErrAuthFailed)}
	svc := newPoolTestService(env, provider)

	first := createAffiliateTest(t, env.db, "POOLERR1", nil)
	second := createAffiliateTest(t, env.db, "POOLERR2", nil)
	createDailyStatTest(t, env.db, first.ID, statDate, "300")
	createDailyStatTest(t, env.db, second.ID, statDate, "200")

	if _, err := svc.SettleDate(statDate); err != nil {
		t.Fatalf("SettleDate failed: %v", err)
	}

	var failedCount int64
	if err := env.db.Model(&models.KingMidasPayout{}).
		Where("stat_date = ? AND status = ?", statDate, constants.PoolPayoutStatusFailed).
		Count(&failedCount).Error; err != nil {
		t.Fatalf("count failed payouts failed: %v", err)
	}
	if failedCount != 2 {
		t.Fatalf("failed payouts = %d, want 2", failedCount)
	}

	var alertCount int64
	if err := env.db.Model(&models.ManualReviewAlert{}).
		Where("kind = ?", constants.AlertKindPoolProviderFailed).
		Count(&alertCount).Error; err != nil {
		t.Fatalf("count alerts failed: %v", err)
	}
	if alertCount != 1 {
		t.Fatalf("alerts = %d, want 1", alertCount)
	}
}

func TestSettleDateInvalidDate(t *testing.T) {
	env := newTestEnv(t, "pool_invalid_date")
	svc := newPoolTestService(env, &fakeProvider{})

	if _, err := svc.SettleDate("27-08-2026"); !errors.Is(err, ErrPoolDateInvalid) {
		t.Fatalf("err = %v, want ErrPoolDateInvalid", err)
	}
}

func TestSettleDateEmptyDay(t *testing.T) {
	env := newTestEnv(t, "pool_empty_day")
	provider := &fakeProvider{}
	svc := newPoolTestService(env, provider)

	settlement, err := svc.SettleDate("2026-08-27")
	if err != nil {
		t.Fatalf("SettleDate failed: %v", err)
	}
	if settlement.PoolAmount.String() != "0.00" {
		t.Fatalf("pool amount = %s, want 0.00", settlement.PoolAmount.String())
	}
	if provider.createCalls != 0 {
		t.Fatalf("provider called for empty day")
	}
}

func TestSettleDueSettlesPastDays(t *testing.T) {
	env := newTestEnv(t, "pool_settle_due")
	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1).Format(constants.StatDateLayout)
	today := now.Format(constants.StatDateLayout)
	provider := &fakeProvider{createResult: poolSuccessResult("KM-BATCH-4", yesterday, 1)}
	svc := newPoolTestService(env, provider)

	seller := createAffiliateTest(t, env.db, "POOLDUE1", nil)
	createDailyStatTest(t, env.db, seller.ID, yesterday, "100")
	createDailyStatTest(t, env.db, seller.ID, today, "100")

	if err := svc.SettleDue(now); err != nil {
		t.Fatalf("SettleDue failed: %v", err)
	}

	if settlement, err := env.poolRepo.GetSettlementByDate(yesterday); err != nil || settlement == nil {
		t.Fatalf("yesterday settlement = %v, err = %v", settlement, err)
	}
	// 当天未结束, 不结算
	if settlement, err := env.poolRepo.GetSettlementByDate(today); err != nil || settlement != nil {
		t.Fatalf("today settlement = %v, err = %v", settlement, err)
	}
}
