package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/queue"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Commission: config.CommissionConfig{
			DirectRatePercent:       42,
			Level1RatePercent:       2,
			Level2RatePercent:       1,
			PoolRatePercent:         8,
			SelfDiscountPercent:     10,
			SelfDiscountIntervalDay: 30,
			PhysicalHoldDays:        30,
			DigitalHoldDays:         7,
		},
		Payout: config.PayoutConfig{
			Enabled:               true,
			MinAmount:             "10",
			Currency:              "USD",
			ReconcileDelaySeconds: 60,
		},
		Pool: config.PoolConfig{SettleIntervalSeconds: 600},
	}
}

type testEnv struct {
	db                *gorm.DB
	affiliateRepo     repository.AffiliateRepository
	commissionRepo    repository.CommissionRepository
	poolRepo          repository.PoolRepository
	alertRepo         repository.AlertRepository
	payoutRepo        repository.PayoutRepository
	orderEventRepo    repository.OrderEventRepository
	commissionService *CommissionService
	orderEventService *OrderEventService
	balanceService    *BalanceService
	cfg               *config.Config
}

func newTestEnv(t *testing.T, name string) *testEnv {
	t.Helper()
	db := newTestDB(t, name)
	cfg := newTestConfig()

	env := &testEnv{
		db:             db,
		affiliateRepo:  repository.NewAffiliateRepository(db),
		commissionRepo: repository.NewCommissionRepository(db),
		poolRepo:       repository.NewPoolRepository(db),
		alertRepo:      repository.NewAlertRepository(db),
		payoutRepo:     repository.NewPayoutRepository(db),
		orderEventRepo: repository.NewOrderEventRepository(db),
		cfg:            cfg,
	}
	env.commissionService = NewCommissionService(env.commissionRepo, env.affiliateRepo, env.poolRepo, env.alertRepo, cfg)
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	env.orderEventService = NewOrderEventService(env.orderEventRepo, env.commissionService, queueClient)
	env.balanceService = NewBalanceService(env.commissionRepo, env.affiliateRepo)
	return env
}

func createAffiliateTest(t *testing.T, db *gorm.DB, code string, referrerID *uint) *models.Affiliate {
	t.Helper()
	affiliate := &models.Affiliate{
		Code:        code,
		Email:       code + "@example.com",
		DisplayName: code,
		Status:      constants.AffiliateStatusActive,
		ReferrerID:  referrerID,
		PayoutEmail: code + "@paypal.example.com",
	}
	if err := db.Create(affiliate).Error; err != nil {
		t.Fatalf("create affiliate %s failed: %v", code, err)
	}
	return affiliate
}

func createOrderEventTest(t *testing.T, db *gorm.DB, orderNo, affiliateCode string, profit string, physical bool) *models.OrderEvent {
	t.Helper()
	amount, err := decimal.NewFromString(profit)
	if err != nil {
		t.Fatalf("parse profit failed: %v", err)
	}
	event := &models.OrderEvent{
		OrderNo:         orderNo,
		Source:          constants.OrderEventSourceAPI,
		EventKind:       constants.OrderEventKindSale,
		OrderStatus:     "paid",
		AffiliateCode:   affiliateCode,
		ProfitAmount:    models.NewMoneyFromDecimal(amount),
		HasPhysicalItem: physical,
		ProcessStatus:   constants.OrderEventProcessPending,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("create order event failed: %v", err)
	}
	return event
}

func getCommissionTest(t *testing.T, db *gorm.DB, orderNo string, affiliateID uint, commissionType string) *models.Commission {
	t.Helper()
	var commission models.Commission
	err := db.Where("order_no = ? AND affiliate_id = ? AND commission_type = ?", orderNo, affiliateID, commissionType).
		First(&commission).Error
	if err != nil {
		t.Fatalf("fetch commission %s/%d/%s failed: %v", orderNo, affiliateID, commissionType, err)
	}
	return &commission
}

func TestHandleSaleEventFullChain(t *testing.T) {
	env := newTestEnv(t, "commission_full_chain")

	grandparent := createAffiliateTest(t, env.db, "GRANDPA1", nil)
	parent := createAffiliateTest(t, env.db, "PARENT01", &grandparent.ID)
	seller := createAffiliateTest(t, env.db, "SELLER01", &parent.ID)

	event := createOrderEventTest(t, env.db, "ORD-1001", seller.Code, "100", false)
	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("HandleSaleEvent failed: %v", err)
	}

	direct := getCommissionTest(t, env.db, "ORD-1001", seller.ID, constants.CommissionTypeOrder)
	if direct.Amount.String() != "42.00" {
		t.Fatalf("direct amount = %s, want 42.00", direct.Amount.String())
	}
	if direct.Status != constants.CommissionStatusPending {
		t.Fatalf("direct status = %s, want pending", direct.Status)
	}
	if direct.AvailableAt == nil {
		t.Fatalf("direct available_at is nil")
	}

	level1 := getCommissionTest(t, env.db, "ORD-1001", parent.ID, constants.CommissionTypeMLMLevel1)
	if level1.Amount.String() != "2.00" {
		t.Fatalf("level1 amount = %s, want 2.00", level1.Amount.String())
	}
	level2 := getCommissionTest(t, env.db, "ORD-1001", grandparent.ID, constants.CommissionTypeMLMLevel2)
	if level2.Amount.String() != "1.00" {
		t.Fatalf("level2 amount = %s, want 1.00", level2.Amount.String())
	}

	var earningCount int64
	if err := env.db.Model(&models.MLMEarning{}).Count(&earningCount).Error; err != nil {
		t.Fatalf("count mlm earnings failed: %v", err)
	}
	if earningCount != 2 {
		t.Fatalf("mlm earnings = %d, want 2", earningCount)
	}

	var santaCount int64
	if err := env.db.Model(&models.SecretSantaContribution{}).Count(&santaCount).Error; err != nil {
		t.Fatalf("count santa contributions failed: %v", err)
	}
	if santaCount != 0 {
		t.Fatalf("santa contributions = %d, want 0", santaCount)
	}

	var stat models.KingMidasDailyStat
	if err := env.db.Where("affiliate_id = ?", seller.ID).First(&stat).Error; err != nil {
		t.Fatalf("fetch daily stat failed: %v", err)
	}
	if stat.ProfitAmount.String() != "100.00" {
		t.Fatalf("stat profit = %s, want 100.00", stat.ProfitAmount.String())
	}
	if stat.OrderCount != 1 {
		t.Fatalf("stat order count = %d, want 1", stat.OrderCount)
	}

	var logCount int64
	if err := env.db.Model(&models.CommissionStatusLog{}).Count(&logCount).Error; err != nil {
		t.Fatalf("count status logs failed: %v", err)
	}
	if logCount != 3 {
		t.Fatalf("status logs = %d, want 3", logCount)
	}
}

func TestHandleSaleEventMissingUplinesFallsToSanta(t *testing.T) {
	env := newTestEnv(t, "commission_santa")

	seller := createAffiliateTest(t, env.db, "SOLO0001", nil)
	event := createOrderEventTest(t, env.db, "ORD-2001", seller.Code, "100", false)
	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("HandleSaleEvent failed: %v", err)
	}

	var contributions []models.SecretSantaContribution
	if err := env.db.Order("level asc").Find(&contributions).Error; err != nil {
		t.Fatalf("fetch contributions failed: %v", err)
	}
	if len(contributions) != 2 {
		t.Fatalf("contributions = %d, want 2", len(contributions))
	}
	if contributions[0].Amount.String() != "2.00" || contributions[1].Amount.String() != "1.00" {
		t.Fatalf("contribution amounts = %s/%s, want 2.00/1.00",
			contributions[0].Amount.String(), contributions[1].Amount.String())
	}

	var pot models.SecretSantaPot
	if err := env.db.First(&pot).Error; err != nil {
		t.Fatalf("fetch pot failed: %v", err)
	}
	if pot.BalanceAmount.String() != "3.00" {
		t.Fatalf("pot balance = %s, want 3.00", pot.BalanceAmount.String())
	}
}

func TestHandleSaleEventNoAttribution(t *testing.T) {
	env := newTestEnv(t, "commission_no_attr")

	event := createOrderEventTest(t, env.db, "ORD-3001", "", "100", false)
	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("HandleSaleEvent failed: %v", err)
	}

	var commissionCount int64
	if err := env.db.Model(&models.Commission{}).Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if commissionCount != 0 {
		t.Fatalf("commissions = %d, want 0", commissionCount)
	}

	var pot models.SecretSantaPot
	if err := env.db.First(&pot).Error; err != nil {
		t.Fatalf("fetch pot failed: %v", err)
	}
	if pot.BalanceAmount.String() != "3.00" {
		t.Fatalf("pot balance = %s, want 3.00", pot.BalanceAmount.String())
	}
}

func TestSecretSantaNotDoubleCountedAcrossSources(t *testing.T) {
	env := newTestEnv(t, "commission_santa_replay")

	// 同一订单经 webhook 与人工补录两条事件各处理一次
	webhookEvent := createOrderEventTest(t, env.db, "ORD-2101", "", "100", false)
	webhookEvent.Source = constants.OrderEventSourceWebhook
	if err := env.db.Save(webhookEvent).Error; err != nil {
		t.Fatalf("save webhook event failed: %v", err)
	}
	manualEvent := createOrderEventTest(t, env.db, "ORD-2101", "", "100", false)
	manualEvent.Source = constants.OrderEventSourceManual
	if err := env.db.Save(manualEvent).Error; err != nil {
		t.Fatalf("save manual event failed: %v", err)
	}

	if err := env.commissionService.HandleSaleEvent(webhookEvent); err != nil {
		t.Fatalf("webhook HandleSaleEvent failed: %v", err)
	}
	if err := env.commissionService.HandleSaleEvent(manualEvent); err != nil {
		t.Fatalf("manual HandleSaleEvent failed: %v", err)
	}

	var contributionCount int64
	if err := env.db.Model(&models.SecretSantaContribution{}).
		Where("order_no = ?", "ORD-2101").
		Count(&contributionCount).Error; err != nil {
		t.Fatalf("count contributions failed: %v", err)
	}
	if contributionCount != 2 {
		t.Fatalf("contributions = %d, want 2 (level 1 + level 2, once each)", contributionCount)
	}

	var pot models.SecretSantaPot
	if err := env.db.First(&pot).Error; err != nil {
		t.Fatalf("fetch pot failed: %v", err)
	}
	if pot.BalanceAmount.String() != "3.00" {
		t.Fatalf("pot balance = %s, want 3.00", pot.BalanceAmount.String())
	}
}

func TestSecretSantaPotYearScoped(t *testing.T) {
	env := newTestEnv(t, "commission_santa_year")

	contributions := []models.SecretSantaContribution{
		{Year: 2025, OrderNo: "ORD-Y2025", Level: 1, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(2))},
		{Year: 2025, OrderNo: "ORD-Y2025", Level: 2, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(1))},
		{Year: 2026, OrderNo: "ORD-Y2026", Level: 1, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(2))},
	}
	for i := range contributions {
		if err := env.commissionRepo.AddSecretSantaContribution(&contributions[i]); err != nil {
			t.Fatalf("add contribution failed: %v", err)
		}
	}

	older, err := env.commissionRepo.GetSecretSantaPot(2025)
	if err != nil {
		t.Fatalf("get 2025 pot failed: %v", err)
	}
	if older == nil || older.BalanceAmount.String() != "3.00" {
		t.Fatalf("2025 pot = %+v, want balance 3.00", older)
	}

	newer, err := env.commissionRepo.GetSecretSantaPot(2026)
	if err != nil {
		t.Fatalf("get 2026 pot failed: %v", err)
	}
	if newer == nil || newer.BalanceAmount.String() != "2.00" {
		t.Fatalf("2026 pot = %+v, want balance 2.00", newer)
	}

	var potCount int64
	if err := env.db.Model(&models.SecretSantaPot{}).Count(&potCount).Error; err != nil {
		t.Fatalf("count pots failed: %v", err)
	}
	if potCount != 2 {
		t.Fatalf("pots = %d, want 2", potCount)
	}
}

func TestHandleSaleEventIdempotent(t *testing.T) {
	env := newTestEnv(t, "commission_idempotent")

	seller := createAffiliateTest(t, env.db, "IDEMP001", nil)
	event := createOrderEventTest(t, env.db, "ORD-4001", seller.Code, "100", false)

	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("first HandleSaleEvent failed: %v", err)
	}
	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("second HandleSaleEvent failed: %v", err)
	}

	var commissionCount int64
	if err := env.db.Model(&models.Commission{}).Where("order_no = ?", "ORD-4001").Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if commissionCount != 1 {
		t.Fatalf("commissions = %d, want 1", commissionCount)
	}

	var affiliate models.Affiliate
	if err := env.db.First(&affiliate, seller.ID).Error; err != nil {
		t.Fatalf("fetch affiliate failed: %v", err)
	}
	if affiliate.ConversionCount != 1 {
		t.Fatalf("conversion count = %d, want 1", affiliate.ConversionCount)
	}
}

func TestHandleSaleEventHoldPeriods(t *testing.T) {
	env := newTestEnv(t, "commission_hold")

	seller := createAffiliateTest(t, env.db, "HOLD0001", nil)

	physical := createOrderEventTest(t, env.db, "ORD-5001", seller.Code, "50", true)
	if err := env.commissionService.HandleSaleEvent(physical); err != nil {
		t.Fatalf("physical HandleSaleEvent failed: %v", err)
	}
	digital := createOrderEventTest(t, env.db, "ORD-5002", seller.Code, "50", false)
	if err := env.commissionService.HandleSaleEvent(digital); err != nil {
		t.Fatalf("digital HandleSaleEvent failed: %v", err)
	}

	now := time.Now()
	physicalRow := getCommissionTest(t, env.db, "ORD-5001", seller.ID, constants.CommissionTypeOrder)
	digitalRow := getCommissionTest(t, env.db, "ORD-5002", seller.ID, constants.CommissionTypeOrder)

	physicalDays := physicalRow.AvailableAt.Sub(now).Hours() / 24
	if physicalDays < 29 || physicalDays > 31 {
		t.Fatalf("physical hold days = %.1f, want ~30", physicalDays)
	}
	digitalDays := digitalRow.AvailableAt.Sub(now).Hours() / 24
	if digitalDays < 6 || digitalDays > 8 {
		t.Fatalf("digital hold days = %.1f, want ~7", digitalDays)
	}
}

func TestHandleSaleEventSelfDiscount(t *testing.T) {
	env := newTestEnv(t, "commission_self_discount")

	seller := createAffiliateTest(t, env.db, "SELFBUY1", nil)
	event := createOrderEventTest(t, env.db, "ORD-6001", seller.Code, "100", false)
	event.SelfPurchase = true
	if err := env.db.Save(event).Error; err != nil {
		t.Fatalf("save event failed: %v", err)
	}

	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("HandleSaleEvent failed: %v", err)
	}

	direct := getCommissionTest(t, env.db, "ORD-6001", seller.ID, constants.CommissionTypeOrder)
	if direct.BaseAmount.String() != "90.00" {
		t.Fatalf("base amount = %s, want 90.00", direct.BaseAmount.String())
	}
	if direct.Amount.String() != "37.80" {
		t.Fatalf("amount = %s, want 37.80", direct.Amount.String())
	}

	var affiliate models.Affiliate
	if err := env.db.First(&affiliate, seller.ID).Error; err != nil {
		t.Fatalf("fetch affiliate failed: %v", err)
	}
	if affiliate.LastSelfDiscountAt == nil {
		t.Fatalf("last_self_discount_at not recorded")
	}

	// 冷却期内第二次自购不再折扣
	second := createOrderEventTest(t, env.db, "ORD-6002", seller.Code, "100", false)
	second.SelfPurchase = true
	if err := env.db.Save(second).Error; err != nil {
		t.Fatalf("save second event failed: %v", err)
	}
	if err := env.commissionService.HandleSaleEvent(second); err != nil {
		t.Fatalf("second HandleSaleEvent failed: %v", err)
	}
	secondDirect := getCommissionTest(t, env.db, "ORD-6002", seller.ID, constants.CommissionTypeOrder)
	if secondDirect.BaseAmount.String() != "100.00" {
		t.Fatalf("second base amount = %s, want 100.00", secondDirect.BaseAmount.String())
	}
}

func TestHandleSaleEventCustomerLifetimeBinding(t *testing.T) {
	env := newTestEnv(t, "commission_binding")

	seller := createAffiliateTest(t, env.db, "BINDER01", nil)

	first := createOrderEventTest(t, env.db, "ORD-7001", seller.Code, "50", false)
	first.CustomerKey = "customer-77"
	if err := env.db.Save(first).Error; err != nil {
		t.Fatalf("save first event failed: %v", err)
	}
	if err := env.commissionService.HandleSaleEvent(first); err != nil {
		t.Fatalf("first HandleSaleEvent failed: %v", err)
	}

	// 第二单没有推广码, 通过客户绑定归因
	second := createOrderEventTest(t, env.db, "ORD-7002", "", "60", false)
	second.CustomerKey = "customer-77"
	if err := env.db.Save(second).Error; err != nil {
		t.Fatalf("save second event failed: %v", err)
	}
	if err := env.commissionService.HandleSaleEvent(second); err != nil {
		t.Fatalf("second HandleSaleEvent failed: %v", err)
	}

	direct := getCommissionTest(t, env.db, "ORD-7002", seller.ID, constants.CommissionTypeOrder)
	if direct.Amount.String() != "25.20" {
		t.Fatalf("second direct amount = %s, want 25.20", direct.Amount.String())
	}
}

func TestCancelByOrderNo(t *testing.T) {
	env := newTestEnv(t, "commission_cancel")

	seller := createAffiliateTest(t, env.db, "CANCEL01", nil)
	event := createOrderEventTest(t, env.db, "ORD-8001", seller.Code, "100", false)
	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("HandleSaleEvent failed: %v", err)
	}

	if err := env.commissionService.CancelByOrderNo("ORD-8001", "refunded"); err != nil {
		t.Fatalf("CancelByOrderNo failed: %v", err)
	}

	direct := getCommissionTest(t, env.db, "ORD-8001", seller.ID, constants.CommissionTypeOrder)
	if direct.Status != constants.CommissionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", direct.Status)
	}
	if direct.CancelReason != constants.CancelReasonRefunded {
		t.Fatalf("cancel reason = %s, want refunded", direct.CancelReason)
	}

	var lastLog models.CommissionStatusLog
	if err := env.db.Where("commission_id = ?", direct.ID).Order("id desc").First(&lastLog).Error; err != nil {
		t.Fatalf("fetch status log failed: %v", err)
	}
	if lastLog.ToStatus != constants.CommissionStatusCancelled {
		t.Fatalf("last log to_status = %s, want cancelled", lastLog.ToStatus)
	}
}

func TestCancelByOrderNoPaidRaisesAlert(t *testing.T) {
	env := newTestEnv(t, "commission_cancel_paid")

	seller := createAffiliateTest(t, env.db, "PAIDCX01", nil)
	event := createOrderEventTest(t, env.db, "ORD-9001", seller.Code, "100", false)
	if err := env.commissionService.HandleSaleEvent(event); err != nil {
		t.Fatalf("HandleSaleEvent failed: %v", err)
	}

	direct := getCommissionTest(t, env.db, "ORD-9001", seller.ID, constants.CommissionTypeOrder)
	now := time.Now()
	if err := env.db.Model(&models.Commission{}).Where("id = ?", direct.ID).
		Updates(map[string]interface{}{"status": constants.CommissionStatusPaid, "paid_at": now}).Error; err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	if err := env.commissionService.CancelByOrderNo("ORD-9001", "chargeback"); err != nil {
		t.Fatalf("CancelByOrderNo failed: %v", err)
	}

	refreshed := getCommissionTest(t, env.db, "ORD-9001", seller.ID, constants.CommissionTypeOrder)
	if refreshed.Status != constants.CommissionStatusPaid {
		t.Fatalf("paid commission flipped to %s", refreshed.Status)
	}

	var alertCount int64
	if err := env.db.Model(&models.ManualReviewAlert{}).
		Where("kind = ?", constants.AlertKindPaidCommissionCancel).
		Count(&alertCount).Error; err != nil {
		t.Fatalf("count alerts failed: %v", err)
	}
	if alertCount != 1 {
		t.Fatalf("alerts = %d, want 1", alertCount)
	}
}
