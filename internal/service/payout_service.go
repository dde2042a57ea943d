package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/payment/paypal"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/queue"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutProvider 批量打款通道
type PayoutProvider interface {
	CreateBatch(input paypal.BatchInput) (*paypal.BatchResult, error)
	GetBatch(batchID string) (*paypal.BatchResult, error)
}

// paypalProvider PayPal Payouts 通道实现
type paypalProvider struct {
	cfg paypal.Config
}

// NewPaypalProvider 创建 PayPal 打款通道
func NewPaypalProvider(cfg *config.PaypalConfig) PayoutProvider {
	if cfg == nil {
		return &paypalProvider{}
	}
	return &paypalProvider{cfg: paypal.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		BaseURL:      cfg.BaseURL,
	}}
}

func (p *paypalProvider) CreateBatch(input paypal.BatchInput) (*paypal.BatchResult, error) {
	return paypal.CreatePayoutBatch(p.cfg, input)
}

func (p *paypalProvider) GetBatch(batchID string) (*paypal.BatchResult, error) {
	return paypal.GetPayoutBatch(p.cfg, batchID)
}

// PayoutService 打款批处理服务
type PayoutService struct {
	repo           repository.PayoutRepository
	commissionRepo repository.CommissionRepository
	affiliateRepo  repository.AffiliateRepository
	alertRepo      repository.AlertRepository
	provider       PayoutProvider
	queueClient    *queue.Client
	cfg            *config.Config
}

// NewPayoutService 创建打款批处理服务
func NewPayoutService(
	repo repository.PayoutRepository,
	commissionRepo repository.CommissionRepository,
	affiliateRepo repository.AffiliateRepository,
	alertRepo repository.AlertRepository,
	provider PayoutProvider,
	queueClient *queue.Client,
	cfg *config.Config,
) *PayoutService {
	return &PayoutService{
		repo:           repo,
		commissionRepo: commissionRepo,
		affiliateRepo:  affiliateRepo,
		alertRepo:      alertRepo,
		provider:       provider,
		queueClient:    queueClient,
		cfg:            cfg,
	}
}

// RequestPayout 发起打款
//
// 先在事务内按解冻时间从早到晚锁定并绑定佣金(末笔拆分, 绑定合计与
// 申请金额严格相等), 再在事务外调用通道。通道结果未知时落
// pending_reconcile 等待对账, 绝不盲目重试。
func (s *PayoutService) RequestPayout(code string, amount decimal.Decimal, destination string) (*models.PayoutRequest, error) {
	affiliate, err := s.affiliateRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	if affiliate.Status != constants.AffiliateStatusActive {
		return nil, ErrAffiliateSuspended
	}

	amount = amount.Round(2)
	if amount.Sign() <= 0 {
		return nil, ErrPayoutAmountInvalid
	}
	minAmount, err := decimal.NewFromString(strings.TrimSpace(s.cfg.Payout.MinAmount))
	if err != nil {
		minAmount = decimal.Zero
	}
	if amount.LessThan(minAmount) {
		return nil, ErrPayoutBelowMinimum
	}
	if amount.LessThan(affiliate.PayoutThreshold.Decimal) {
		return nil, ErrPayoutBelowThreshold
	}
	if !s.cfg.Payout.Enabled {
		return nil, ErrPayoutDisabled
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		destination = strings.TrimSpace(affiliate.PayoutEmail)
	}
	if destination == "" {
		return nil, ErrPayoutNoDestination
	}

	now := time.Now()
	aggregate, err := s.commissionRepo.BalanceAggregate(affiliate.ID, now)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(aggregate.Available) {
		return nil, &InsufficientBalanceError{
			Requested: amount,
			Available: aggregate.Available,
			Pending:   aggregate.Pending,
		}
	}

	request := &models.PayoutRequest{
		RequestNo:   generatePayoutRequestNo(),
		AffiliateID: affiliate.ID,
		Amount:      models.NewMoneyFromDecimal(amount),
		Currency:    s.payoutCurrency(),
		Destination: destination,
		Status:      constants.PayoutStatusApproved,
	}

	err = s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepoTx := s.commissionRepo.WithTx(tx)
		payoutRepoTx := s.repo.WithTx(tx)

		rows, err := commissionRepoTx.ListAvailableForUpdate(affiliate.ID, now)
		if err != nil {
			return err
		}

		boundIDs, err := s.bindCommissionsTx(commissionRepoTx, rows, amount, now)
		if err != nil {
			return err
		}

		if err := payoutRepoTx.Create(request); err != nil {
			return err
		}
		if _, err := commissionRepoTx.BatchUpdate(boundIDs, map[string]interface{}{
			"payout_request_id": request.ID,
			"updated_at":        now,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.executeProviderBatch(request); err != nil {
		return nil, err
	}
	return request, nil
}

// bindCommissionsTx 从早到晚挑选佣金直到覆盖申请金额, 末笔拆分
func (s *PayoutService) bindCommissionsTx(
	commissionRepoTx repository.CommissionRepository,
	rows []models.Commission,
	amount decimal.Decimal,
	now time.Time,
) ([]uint, error) {
	remaining := amount
	boundIDs := make([]uint, 0, len(rows))

	for i := range rows {
		if remaining.Sign() <= 0 {
			break
		}
		row := rows[i]
		rowAmount := row.Amount.Decimal

		if rowAmount.LessThanOrEqual(remaining) {
			boundIDs = append(boundIDs, row.ID)
			remaining = remaining.Sub(rowAmount)
			continue
		}

		// 末笔拆分: 原记录缩减为待绑定金额, 余额以派生类型另起一行
		splitAmount := rowAmount.Sub(remaining)
		row.Amount = models.NewMoneyFromDecimal(remaining)
		row.UpdatedAt = now
		if err := commissionRepoTx.Update(&row); err != nil {
			return nil, err
		}

		clone := row
		clone.ID = 0
		clone.CommissionType = splitCommissionType(row.CommissionType, row.ID)
		clone.Amount = models.NewMoneyFromDecimal(splitAmount)
		clone.PayoutRequestID = nil
		clone.CreatedAt = row.CreatedAt
		clone.UpdatedAt = now
		if err := commissionRepoTx.Create(&clone); err != nil {
			return nil, err
		}

		boundIDs = append(boundIDs, row.ID)
		remaining = decimal.Zero
	}

	if remaining.Sign() > 0 {
		return nil, ErrPayoutBalanceChanged
	}
	return boundIDs, nil
}

// executeProviderBatch 事务外调用打款通道并落地结果
//
// 明确失败时返回 ErrPayoutProviderFailed 供调用方上抛; 结果未知
// (对账中)不算失败, 返回 nil。
func (s *PayoutService) executeProviderBatch(request *models.PayoutRequest) error {
	result, err := s.provider.CreateBatch(paypal.BatchInput{
		SenderBatchID: request.RequestNo,
		EmailSubject:  s.cfg.Paypal.EmailSubject,
		Items: []paypal.BatchItem{
			{
				ReceiverEmail: request.Destination,
				Amount:        request.Amount.Decimal.StringFixed(2),
				Currency:      request.Currency,
				SenderItemID:  request.RequestNo + "-1",
				Note:          "Commission payout " + request.RequestNo,
			},
		},
	})
	switch {
	case err != nil && errors.Is(err, paypal.ErrRequestFailed):
		// 请求已发出但结果未知, 留待对账
		logger.Warnw("payout_provider_ambiguous", "request_no", request.RequestNo, "error", err)
		s.markPendingReconcile(request, err.Error())
		return nil
	case err != nil:
		logger.Warnw("payout_provider_failed", "request_no", request.RequestNo, "error", err)
		s.failAndRelease(request, err.Error())
		return fmt.Errorf("%w: %v", ErrPayoutProviderFailed, err)
	case result.Failed():
		logger.Warnw("payout_provider_batch_denied", "request_no", request.RequestNo, "batch_status", result.BatchStatus)
		request.ProviderBatchID = result.BatchID
		s.failAndRelease(request, "provider batch "+result.BatchStatus)
		return fmt.Errorf("%w: batch %s", ErrPayoutProviderFailed, result.BatchStatus)
	case result.Succeeded():
		request.ProviderBatchID = result.BatchID
		s.finalizePaid(request)
		return nil
	default:
		// PENDING/PROCESSING 等中间态
		request.ProviderBatchID = result.BatchID
		s.markPendingReconcile(request, "provider batch "+result.BatchStatus)
		return nil
	}
}

// Reconcile 对账单笔打款申请
//
// 有批次号时查询通道终态; 没有批次号说明创建调用本身结果未知,
// 转 manual_review 终态并告警一次, 不允许重发。
func (s *PayoutService) Reconcile(payoutRequestID uint) error {
	request, err := s.repo.GetByID(payoutRequestID)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrPayoutRequestNotFound
	}
	if request.Status != constants.PayoutStatusPendingReconcile {
		logger.Debugw("payout_reconcile_skip_status", "request_no", request.RequestNo, "status", request.Status)
		return nil
	}

	if strings.TrimSpace(request.ProviderBatchID) == "" {
		return s.parkForManualReview(request.ID, "payout batch id unknown after ambiguous provider call, manual review required")
	}

	result, err := s.provider.GetBatch(request.ProviderBatchID)
	if err != nil {
		logger.Warnw("payout_reconcile_query_failed", "request_no", request.RequestNo, "error", err)
		return s.enqueueReconcile(request.ID)
	}

	switch {
	case result.Succeeded():
		s.finalizePaid(request)
	case result.Failed():
		s.failAndRelease(request, "provider batch "+result.BatchStatus)
	default:
		logger.Debugw("payout_reconcile_still_pending", "request_no", request.RequestNo, "batch_status", result.BatchStatus)
		return s.enqueueReconcile(request.ID)
	}
	return nil
}

// ReconcileDue 批量对账到期的 pending_reconcile 申请,
// 并兜底处理长期停留在 approved 的申请(进程在通道调用前后中断)。
func (s *PayoutService) ReconcileDue(before time.Time) error {
	rows, err := s.repo.ListPendingReconcile(before, 50)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := s.Reconcile(rows[i].ID); err != nil {
			logger.Warnw("payout_reconcile_due_failed", "payout_request_id", rows[i].ID, "error", err)
		}
	}

	staleCutoff := before.Add(-time.Duration(s.cfg.Payout.ReconcileDelaySeconds) * time.Second)
	stale, err := s.repo.ListStaleApproved(staleCutoff, 50)
	if err != nil {
		return err
	}
	for i := range stale {
		logger.Warnw("payout_stale_approved", "request_no", stale[i].RequestNo, "payout_request_id", stale[i].ID)
		if err := s.parkForManualReview(stale[i].ID, "payout stuck in approved, provider call outcome unknown, manual review required"); err != nil {
			logger.Warnw("payout_stale_park_failed", "payout_request_id", stale[i].ID, "error", err)
		}
	}
	return nil
}

// parkForManualReview 将无法自动推进的申请转 manual_review 终态
//
// 佣金绑定保留(资金可能已在途, 不能释放也不能重发), 告警只在状态
// 实际流转的那一次写入, 重复扫描不会刷屏。
func (s *PayoutService) parkForManualReview(payoutRequestID uint, message string) error {
	now := time.Now()
	return s.repo.Transaction(func(tx *gorm.DB) error {
		payoutRepoTx := s.repo.WithTx(tx)
		alertRepoTx := s.alertRepo.WithTx(tx)

		request, err := payoutRepoTx.GetByIDForUpdate(payoutRequestID)
		if err != nil {
			return err
		}
		if request == nil {
			return ErrPayoutRequestNotFound
		}
		if request.Status != constants.PayoutStatusPendingReconcile && request.Status != constants.PayoutStatusApproved {
			return nil
		}

		request.Status = constants.PayoutStatusManualReview
		request.FailReason = truncateReason(message)
		request.UpdatedAt = now
		if err := payoutRepoTx.Update(request); err != nil {
			return err
		}
		return alertRepoTx.Create(&models.ManualReviewAlert{
			Kind:            constants.AlertKindPayoutProviderFailed,
			PayoutRequestID: &request.ID,
			Message:         fmt.Sprintf("payout %s: %s", request.RequestNo, message),
		})
	})
}

// GetByID 查询打款申请
func (s *PayoutService) GetByID(id uint) (*models.PayoutRequest, error) {
	return s.repo.GetByID(id)
}

// List 查询打款申请列表
func (s *PayoutService) List(filter repository.PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	return s.repo.List(filter)
}

// finalizePaid 确认成功: 绑定佣金条件更新为 paid
func (s *PayoutService) finalizePaid(request *models.PayoutRequest) {
	now := time.Now()
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepoTx := s.commissionRepo.WithTx(tx)
		payoutRepoTx := s.repo.WithTx(tx)

		rows, err := commissionRepoTx.ListByPayoutIDForUpdate(request.ID)
		if err != nil {
			return err
		}
		for i := range rows {
			row := rows[i]
			if row.Status != constants.CommissionStatusPending {
				logger.Warnw("payout_finalize_skip_status", "commission_id", row.ID, "status", row.Status)
				continue
			}
			if _, err := commissionRepoTx.BatchUpdate([]uint{row.ID}, map[string]interface{}{
				"status":            constants.CommissionStatusPaid,
				"paid_at":           now,
				"provider_batch_id": request.ProviderBatchID,
				"updated_at":        now,
			}); err != nil {
				return err
			}
			if err := commissionRepoTx.CreateStatusLog(&models.CommissionStatusLog{
				CommissionID: row.ID,
				FromStatus:   constants.CommissionStatusPending,
				ToStatus:     constants.CommissionStatusPaid,
				Reason:       "payout " + request.RequestNo,
			}); err != nil {
				return err
			}
		}

		request.Status = constants.PayoutStatusPaid
		request.PaidAt = &now
		request.UpdatedAt = now
		return payoutRepoTx.Update(request)
	})
	if err != nil {
		logger.Errorw("payout_finalize_paid_failed", "request_no", request.RequestNo, "error", err)
	}
}

// failAndRelease 明确失败: 释放绑定, 申请转 failed
func (s *PayoutService) failAndRelease(request *models.PayoutRequest, reason string) {
	now := time.Now()
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commissionRepoTx := s.commissionRepo.WithTx(tx)
		payoutRepoTx := s.repo.WithTx(tx)
		alertRepoTx := s.alertRepo.WithTx(tx)

		rows, err := commissionRepoTx.ListByPayoutIDForUpdate(request.ID)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(rows))
		for i := range rows {
			if rows[i].Status == constants.CommissionStatusPending {
				ids = append(ids, rows[i].ID)
			}
		}
		if _, err := commissionRepoTx.BatchUpdate(ids, map[string]interface{}{
			"payout_request_id": nil,
			"updated_at":        now,
		}); err != nil {
			return err
		}

		request.Status = constants.PayoutStatusFailed
		request.FailReason = truncateReason(reason)
		request.UpdatedAt = now
		if err := payoutRepoTx.Update(request); err != nil {
			return err
		}

		return alertRepoTx.Create(&models.ManualReviewAlert{
			Kind:            constants.AlertKindPayoutProviderFailed,
			PayoutRequestID: &request.ID,
			Message:         fmt.Sprintf("payout %s failed: %s", request.RequestNo, truncateReason(reason)),
		})
	})
	if err != nil {
		logger.Errorw("payout_fail_release_failed", "request_no", request.RequestNo, "error", err)
	}
}

// markPendingReconcile 结果未知: 保留绑定并安排延迟对账
func (s *PayoutService) markPendingReconcile(request *models.PayoutRequest, reason string) {
	now := time.Now()
	request.Status = constants.PayoutStatusPendingReconcile
	request.FailReason = truncateReason(reason)
	request.UpdatedAt = now
	if err := s.repo.Update(request); err != nil {
		logger.Errorw("payout_mark_reconcile_failed", "request_no", request.RequestNo, "error", err)
		return
	}
	if err := s.enqueueReconcile(request.ID); err != nil {
		logger.Warnw("payout_reconcile_enqueue_failed", "request_no", request.RequestNo, "error", err)
	}
}

func (s *PayoutService) enqueueReconcile(payoutRequestID uint) error {
	if !s.queueClient.Enabled() {
		return nil
	}
	delay := time.Duration(s.cfg.Payout.ReconcileDelaySeconds) * time.Second
	return s.queueClient.EnqueuePayoutReconcile(queue.PayoutReconcilePayload{PayoutRequestID: payoutRequestID}, delay)
}

func (s *PayoutService) payoutCurrency() string {
	currency := strings.ToUpper(strings.TrimSpace(s.cfg.Payout.Currency))
	if currency == "" {
		currency = constants.DefaultPayoutCurrency
	}
	return currency
}

func generatePayoutRequestNo() string {
	return "PO" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:18]
}

// splitCommissionType 拆分行派生类型, 保持唯一索引不冲突
func splitCommissionType(base string, sourceID uint) string {
	return fmt.Sprintf("%s_split_%d", base, sourceID)
}

func truncateReason(reason string) string {
	if len(reason) > 500 {
		return reason[:500]
	}
	return reason
}
