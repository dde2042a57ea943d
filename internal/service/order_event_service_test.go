package service

import (
	"errors"
	"testing"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/shopspring/decimal"
)

// saleItemsTest 单行数字商品, 整单利润等于 profit
func saleItemsTest(profit int64) []OrderEventItemInput {
	return []OrderEventItemInput{{
		ProductID: "SKU-DIGITAL",
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(profit),
		UnitCost:  decimal.Zero,
	}}
}

func TestIngestProcessesInline(t *testing.T) {
	env := newTestEnv(t, "order_event_inline")

	seller := createAffiliateTest(t, env.db, "INGEST01", nil)
	event, created, err := env.orderEventService.Ingest(OrderEventInput{
		OrderNo:       "ORD-E1001",
		Source:        "webhook",
		OrderStatus:   "paid",
		AffiliateCode: seller.Code,
		Items:         saleItemsTest(100),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !created {
		t.Fatalf("created = false, want true")
	}
	if event.EventKind != constants.OrderEventKindSale {
		t.Fatalf("event kind = %s, want sale", event.EventKind)
	}
	if event.Source != constants.OrderEventSourceWebhook {
		t.Fatalf("source = %s, want webhook", event.Source)
	}

	var refreshed models.OrderEvent
	if err := env.db.First(&refreshed, event.ID).Error; err != nil {
		t.Fatalf("fetch event failed: %v", err)
	}
	if refreshed.ProcessStatus != constants.OrderEventProcessProcessed {
		t.Fatalf("process status = %s, want processed", refreshed.ProcessStatus)
	}

	direct := getCommissionTest(t, env.db, "ORD-E1001", seller.ID, constants.CommissionTypeOrder)
	if direct.Amount.String() != "42.00" {
		t.Fatalf("direct amount = %s, want 42.00", direct.Amount.String())
	}
	if direct.OrderEventID == nil || *direct.OrderEventID != event.ID {
		t.Fatalf("commission order_event_id = %v, want %d", direct.OrderEventID, event.ID)
	}
}

func TestIngestDuplicateReturnsExisting(t *testing.T) {
	env := newTestEnv(t, "order_event_duplicate")

	seller := createAffiliateTest(t, env.db, "INGEST02", nil)
	input := OrderEventInput{
		OrderNo:       "ORD-E2001",
		Source:        "webhook",
		OrderStatus:   "paid",
		AffiliateCode: seller.Code,
		Items:         saleItemsTest(100),
	}

	first, created, err := env.orderEventService.Ingest(input)
	if err != nil || !created {
		t.Fatalf("first Ingest = (created %v, err %v)", created, err)
	}
	second, created, err := env.orderEventService.Ingest(input)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if created {
		t.Fatalf("second Ingest created = true, want false")
	}
	if second.ID != first.ID {
		t.Fatalf("second event id = %d, want %d", second.ID, first.ID)
	}

	var eventCount int64
	if err := env.db.Model(&models.OrderEvent{}).Where("order_no = ?", "ORD-E2001").Count(&eventCount).Error; err != nil {
		t.Fatalf("count events failed: %v", err)
	}
	if eventCount != 1 {
		t.Fatalf("events = %d, want 1", eventCount)
	}

	var commissionCount int64
	if err := env.db.Model(&models.Commission{}).Where("order_no = ?", "ORD-E2001").Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if commissionCount != 1 {
		t.Fatalf("commissions = %d, want 1", commissionCount)
	}
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, "order_event_invalid")

	cases := []struct {
		name  string
		input OrderEventInput
	}{
		{"empty order no", OrderEventInput{OrderStatus: "paid", Items: saleItemsTest(10)}},
		{"unknown status", OrderEventInput{OrderNo: "ORD-E3001", OrderStatus: "shipped", Items: saleItemsTest(10)}},
		{"sale without items", OrderEventInput{OrderNo: "ORD-E3002", OrderStatus: "paid"}},
		{"zero quantity", OrderEventInput{OrderNo: "ORD-E3003", OrderStatus: "paid", Items: []OrderEventItemInput{
			{ProductID: "SKU-1", Quantity: 0, UnitPrice: decimal.NewFromInt(10)},
		}}},
		{"missing product id", OrderEventInput{OrderNo: "ORD-E3004", OrderStatus: "paid", Items: []OrderEventItemInput{
			{Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		}}},
		{"negative order profit", OrderEventInput{OrderNo: "ORD-E3005", OrderStatus: "paid", Items: []OrderEventItemInput{
			{ProductID: "SKU-1", Quantity: 1, UnitPrice: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(9)},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := env.orderEventService.Ingest(tc.input); !errors.Is(err, ErrOrderEventInvalid) {
				t.Fatalf("err = %v, want ErrOrderEventInvalid", err)
			}
		})
	}
}

func TestIngestDerivesProfitAndHoldFromItems(t *testing.T) {
	env := newTestEnv(t, "order_event_line_items")

	seller := createAffiliateTest(t, env.db, "INGEST05", nil)
	event, _, err := env.orderEventService.Ingest(OrderEventInput{
		OrderNo:       "ORD-E7001",
		Source:        "webhook",
		OrderStatus:   "paid",
		AffiliateCode: seller.Code,
		Items: []OrderEventItemInput{
			{ProductID: "SKU-EBOOK", VariantID: "pdf", Quantity: 2, UnitPrice: decimal.NewFromInt(30), UnitCost: decimal.NewFromInt(10)},
			{ProductID: "SKU-SHIRT", VariantID: "xl", Quantity: 1, UnitPrice: decimal.NewFromInt(25), UnitCost: decimal.NewFromInt(5), Physical: true},
		},
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// 2x(30-10) + 1x(25-5) = 60, 含实物行项目
	if event.ProfitAmount.String() != "60.00" {
		t.Fatalf("profit = %s, want 60.00", event.ProfitAmount.String())
	}
	if !event.HasPhysicalItem {
		t.Fatalf("has_physical_item = false, want true")
	}

	direct := getCommissionTest(t, env.db, "ORD-E7001", seller.ID, constants.CommissionTypeOrder)
	if direct.AvailableAt == nil {
		t.Fatalf("available_at is nil")
	}
	physicalHold := time.Duration(env.cfg.Commission.PhysicalHoldDays) * 24 * time.Hour
	digitalHold := time.Duration(env.cfg.Commission.DigitalHoldDays) * 24 * time.Hour
	until := time.Until(*direct.AvailableAt)
	if until <= digitalHold || until > physicalHold {
		t.Fatalf("hold duration %v, want physical hold window (> %v, <= %v)", until, digitalHold, physicalHold)
	}
}

func TestIngestCancelEvent(t *testing.T) {
	env := newTestEnv(t, "order_event_cancel")

	seller := createAffiliateTest(t, env.db, "INGEST03", nil)
	if _, _, err := env.orderEventService.Ingest(OrderEventInput{
		OrderNo:       "ORD-E4001",
		Source:        "webhook",
		OrderStatus:   "paid",
		AffiliateCode: seller.Code,
		Items:         saleItemsTest(100),
	}); err != nil {
		t.Fatalf("sale Ingest failed: %v", err)
	}

	event, created, err := env.orderEventService.Ingest(OrderEventInput{
		OrderNo:     "ORD-E4001",
		Source:      "webhook",
		OrderStatus: "refunded",
	})
	if err != nil {
		t.Fatalf("cancel Ingest failed: %v", err)
	}
	if !created {
		t.Fatalf("cancel event not created")
	}
	if event.EventKind != constants.OrderEventKindCancel {
		t.Fatalf("event kind = %s, want cancel", event.EventKind)
	}
	if event.Reason != "refunded" {
		t.Fatalf("event reason = %s, want refunded", event.Reason)
	}

	direct := getCommissionTest(t, env.db, "ORD-E4001", seller.ID, constants.CommissionTypeOrder)
	if direct.Status != constants.CommissionStatusCancelled {
		t.Fatalf("commission status = %s, want cancelled", direct.Status)
	}
	if direct.CancelReason != constants.CancelReasonRefunded {
		t.Fatalf("cancel reason = %s, want refunded", direct.CancelReason)
	}
}

func TestProcessMarksFailure(t *testing.T) {
	env := newTestEnv(t, "order_event_failure")

	event := &models.OrderEvent{
		OrderNo:       "ORD-E5001",
		Source:        constants.OrderEventSourceAPI,
		EventKind:     "unknown",
		OrderStatus:   "paid",
		ProcessStatus: constants.OrderEventProcessPending,
	}
	if err := env.db.Create(event).Error; err != nil {
		t.Fatalf("create event failed: %v", err)
	}

	if err := env.orderEventService.Process(event.ID); !errors.Is(err, ErrOrderEventInvalid) {
		t.Fatalf("Process err = %v, want ErrOrderEventInvalid", err)
	}

	var refreshed models.OrderEvent
	if err := env.db.First(&refreshed, event.ID).Error; err != nil {
		t.Fatalf("fetch event failed: %v", err)
	}
	if refreshed.ProcessStatus != constants.OrderEventProcessFailed {
		t.Fatalf("process status = %s, want failed", refreshed.ProcessStatus)
	}
	if refreshed.ProcessError == "" {
		t.Fatalf("process error empty")
	}
}

func TestProcessSkipsProcessed(t *testing.T) {
	env := newTestEnv(t, "order_event_skip")

	seller := createAffiliateTest(t, env.db, "INGEST04", nil)
	event, _, err := env.orderEventService.Ingest(OrderEventInput{
		OrderNo:       "ORD-E6001",
		OrderStatus:   "paid",
		AffiliateCode: seller.Code,
		Items:         saleItemsTest(100),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// 重放已处理事件不再产生副作用
	if err := env.orderEventService.Process(event.ID); err != nil {
		t.Fatalf("replay Process failed: %v", err)
	}

	var commissionCount int64
	if err := env.db.Model(&models.Commission{}).Where("order_no = ?", "ORD-E6001").Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if commissionCount != 1 {
		t.Fatalf("commissions = %d, want 1", commissionCount)
	}
}
