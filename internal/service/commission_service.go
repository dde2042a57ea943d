package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 佣金台账服务
type CommissionService struct {
	repo          repository.CommissionRepository
	affiliateRepo repository.AffiliateRepository
	poolRepo      repository.PoolRepository
	alertRepo     repository.AlertRepository
	cfg           *config.Config
}

// NewCommissionService 创建佣金台账服务
func NewCommissionService(
	repo repository.CommissionRepository,
	affiliateRepo repository.AffiliateRepository,
	poolRepo repository.PoolRepository,
	alertRepo repository.AlertRepository,
	cfg *config.Config,
) *CommissionService {
	return &CommissionService{
		repo:          repo,
		affiliateRepo: affiliateRepo,
		poolRepo:      poolRepo,
		alertRepo:     alertRepo,
		cfg:           cfg,
	}
}

// HandleSaleEvent 按销售事件创建佣金
//
// 同一订单重复处理时依赖 (affiliate_id, order_no, commission_type)
// 唯一索引兜底, 重复创建视为已处理。
func (s *CommissionService) HandleSaleEvent(event *models.OrderEvent) error {
	if event == nil || strings.TrimSpace(event.OrderNo) == "" {
		return ErrOrderEventInvalid
	}
	now := time.Now()

	affiliate, err := s.resolveAffiliate(event)
	if err != nil {
		return err
	}

	var level1, level2 *models.Affiliate
	if affiliate != nil {
		level1, level2, err = s.resolveUplines(affiliate)
		if err != nil {
			return err
		}
	}

	selfDiscountEligible := false
	if affiliate != nil && event.SelfPurchase {
		selfDiscountEligible = s.selfDiscountEligible(affiliate, now)
	}

	breakdown := CalculateBreakdown(BreakdownInput{
		Profit:               event.ProfitAmount.Decimal,
		SelfPurchase:         event.SelfPurchase,
		SelfDiscountEligible: selfDiscountEligible,
		HasReferrer:          affiliate != nil,
		HasLevel1:            level1 != nil,
		HasLevel2:            level2 != nil,
	}, RatesFromConfig(&s.cfg.Commission))

	availableAt := now.Add(s.holdDuration(event.HasPhysicalItem))

	return s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		affiliateRepoTx := s.affiliateRepo.WithTx(tx)
		poolRepoTx := s.poolRepo.WithTx(tx)

		if affiliate != nil {
			created, err := s.createCommissionTx(repoTx, &models.Commission{
				AffiliateID:    affiliate.ID,
				OrderNo:        event.OrderNo,
				CommissionType: constants.CommissionTypeOrder,
				OrderEventID:   &event.ID,
				BaseAmount:     models.NewMoneyFromDecimal(breakdown.AdjustedProfit),
				RatePercent:    s.cfg.Commission.DirectRatePercent,
				Amount:         models.NewMoneyFromDecimal(breakdown.Direct),
				Status:         constants.CommissionStatusPending,
				AvailableAt:    &availableAt,
			})
			if err != nil {
				return err
			}
			if !created {
				logger.Debugw("commission_sale_skip_duplicate", "order_no", event.OrderNo, "affiliate_id", affiliate.ID)
				return nil
			}

			if err := affiliateRepoTx.IncrementCounters(affiliate.ID, breakdown.Direct.IntPart(), 1, decimal.Zero, now); err != nil {
				return err
			}
			if selfDiscountEligible && breakdown.SelfDiscount.Sign() > 0 {
				if err := affiliateRepoTx.UpdateLastSelfDiscountAt(affiliate.ID, now); err != nil {
					return err
				}
			}
			if key := strings.TrimSpace(event.CustomerKey); key != "" && !event.SelfPurchase {
				if err := affiliateRepoTx.CreateCustomerBinding(&models.AffiliateCustomer{
					CustomerKey: key,
					AffiliateID: affiliate.ID,
				}); err != nil {
					return err
				}
			}
			if err := poolRepoTx.UpsertDailyStat(affiliate.ID, now.UTC().Format(constants.StatDateLayout), breakdown.AdjustedProfit, 1); err != nil {
				return err
			}

			if level1 != nil {
				if err := s.createUplineCommissionTx(repoTx, affiliateRepoTx, event, affiliate, level1, 1,
					constants.CommissionTypeMLMLevel1, s.cfg.Commission.Level1RatePercent, breakdown.AdjustedProfit, breakdown.Level1, availableAt, now); err != nil {
					return err
				}
			}
			if level2 != nil {
				if err := s.createUplineCommissionTx(repoTx, affiliateRepoTx, event, affiliate, level2, 2,
					constants.CommissionTypeMLMLevel2, s.cfg.Commission.Level2RatePercent, breakdown.AdjustedProfit, breakdown.Level2, availableAt, now); err != nil {
					return err
				}
			}
		}

		if breakdown.SecretSanta.Sign() > 0 {
			if err := s.recordSecretSantaTx(repoTx, event, affiliate, level1 == nil, level2 == nil, breakdown.AdjustedProfit, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelByOrderNo 取消订单下全部未终结佣金
//
// 已打款的佣金不回滚, 记录人工审核告警; 已绑定在途打款的佣金同样
// 跳过并告警, 避免与打款流程互相踩踏。
func (s *CommissionService) CancelByOrderNo(orderNo, reason string) error {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return ErrOrderEventInvalid
	}
	reason = normalizeCancelReason(reason)
	now := time.Now()

	return s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		alertRepoTx := s.alertRepo.WithTx(tx)

		rows, err := repoTx.ListByOrderForUpdate(orderNo, nil)
		if err != nil {
			return err
		}
		for i := range rows {
			row := rows[i]
			switch {
			case row.Status == constants.CommissionStatusCancelled:
				continue
			case row.Status == constants.CommissionStatusPaid:
				if err := alertRepoTx.Create(&models.ManualReviewAlert{
					Kind:         constants.AlertKindPaidCommissionCancel,
					OrderNo:      orderNo,
					CommissionID: &row.ID,
					Message:      fmt.Sprintf("commission %d already paid, order %s reversal (%s) needs manual review", row.ID, orderNo, reason),
				}); err != nil {
					return err
				}
				logger.Warnw("commission_cancel_skip_paid", "order_no", orderNo, "commission_id", row.ID, "reason", reason)
				continue
			case row.PayoutRequestID != nil:
				if err := alertRepoTx.Create(&models.ManualReviewAlert{
					Kind:         constants.AlertKindPaidCommissionCancel,
					OrderNo:      orderNo,
					CommissionID: &row.ID,
					Message:      fmt.Sprintf("commission %d bound to payout %d, order %s reversal (%s) needs manual review", row.ID, *row.PayoutRequestID, orderNo, reason),
				}); err != nil {
					return err
				}
				logger.Warnw("commission_cancel_skip_payout_bound", "order_no", orderNo, "commission_id", row.ID)
				continue
			}

			fromStatus := row.Status
			row.Status = constants.CommissionStatusCancelled
			row.CancelReason = reason
			row.UpdatedAt = now
			if err := repoTx.Update(&row); err != nil {
				return err
			}
			if err := repoTx.CreateStatusLog(&models.CommissionStatusLog{
				CommissionID: row.ID,
				FromStatus:   fromStatus,
				ToStatus:     constants.CommissionStatusCancelled,
				Reason:       reason,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// List 查询佣金列表
func (s *CommissionService) List(filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	return s.repo.List(filter)
}

// ListStatusLogs 查询佣金状态流转记录
func (s *CommissionService) ListStatusLogs(commissionID uint) ([]models.CommissionStatusLog, error) {
	return s.repo.ListStatusLogs(commissionID)
}

func (s *CommissionService) resolveAffiliate(event *models.OrderEvent) (*models.Affiliate, error) {
	if code := strings.TrimSpace(event.AffiliateCode); code != "" {
		affiliate, err := s.affiliateRepo.GetByCode(code)
		if err != nil {
			return nil, err
		}
		if affiliate != nil && affiliate.Status == constants.AffiliateStatusActive {
			return affiliate, nil
		}
		if affiliate != nil {
			logger.Debugw("commission_attribution_skip_suspended", "order_no", event.OrderNo, "affiliate_id", affiliate.ID)
		}
	}

	// 推广码缺失时回落到客户终身绑定
	if key := strings.TrimSpace(event.CustomerKey); key != "" {
		binding, err := s.affiliateRepo.GetCustomerBinding(key)
		if err != nil {
			return nil, err
		}
		if binding != nil {
			affiliate, err := s.affiliateRepo.GetByID(binding.AffiliateID)
			if err != nil {
				return nil, err
			}
			if affiliate != nil && affiliate.Status == constants.AffiliateStatusActive {
				return affiliate, nil
			}
		}
	}
	return nil, nil
}

func (s *CommissionService) resolveUplines(affiliate *models.Affiliate) (*models.Affiliate, *models.Affiliate, error) {
	if affiliate == nil || affiliate.ReferrerID == nil {
		return nil, nil, nil
	}
	level1, err := s.affiliateRepo.GetByID(*affiliate.ReferrerID)
	if err != nil {
		return nil, nil, err
	}
	if level1 == nil || level1.Status != constants.AffiliateStatusActive {
		return nil, nil, nil
	}
	if level1.ReferrerID == nil {
		return level1, nil, nil
	}
	level2, err := s.affiliateRepo.GetByID(*level1.ReferrerID)
	if err != nil {
		return nil, nil, err
	}
	if level2 == nil || level2.Status != constants.AffiliateStatusActive {
		return level1, nil, nil
	}
	return level1, level2, nil
}

func (s *CommissionService) selfDiscountEligible(affiliate *models.Affiliate, now time.Time) bool {
	if affiliate.LastSelfDiscountAt == nil {
		return true
	}
	interval := time.Duration(s.cfg.Commission.SelfDiscountIntervalDay) * 24 * time.Hour
	return now.Sub(*affiliate.LastSelfDiscountAt) >= interval
}

func (s *CommissionService) holdDuration(hasPhysicalItem bool) time.Duration {
	days := s.cfg.Commission.DigitalHoldDays
	if hasPhysicalItem {
		days = s.cfg.Commission.PhysicalHoldDays
	}
	if days < 0 {
		days = 0
	}
	return time.Duration(days) * 24 * time.Hour
}

// createCommissionTx 创建佣金并写入初始状态记录, 唯一冲突返回 created=false
func (s *CommissionService) createCommissionTx(repoTx repository.CommissionRepository, commission *models.Commission) (bool, error) {
	if err := repoTx.Create(commission); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	if err := repoTx.CreateStatusLog(&models.CommissionStatusLog{
		CommissionID: commission.ID,
		FromStatus:   "",
		ToStatus:     constants.CommissionStatusPending,
		Reason:       "created",
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CommissionService) createUplineCommissionTx(
	repoTx repository.CommissionRepository,
	affiliateRepoTx repository.AffiliateRepository,
	event *models.OrderEvent,
	source, upline *models.Affiliate,
	level int,
	commissionType string,
	ratePercent int64,
	baseAmount, amount decimal.Decimal,
	availableAt, now time.Time,
) error {
	created, err := s.createCommissionTx(repoTx, &models.Commission{
		AffiliateID:    upline.ID,
		OrderNo:        event.OrderNo,
		CommissionType: commissionType,
		OrderEventID:   &event.ID,
		BaseAmount:     models.NewMoneyFromDecimal(baseAmount),
		RatePercent:    ratePercent,
		Amount:         models.NewMoneyFromDecimal(amount),
		Status:         constants.CommissionStatusPending,
		AvailableAt:    &availableAt,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if err := repoTx.CreateMLMEarning(&models.MLMEarning{
		AffiliateID:       upline.ID,
		SourceAffiliateID: source.ID,
		OrderNo:           event.OrderNo,
		Level:             level,
		Amount:            models.NewMoneyFromDecimal(amount),
	}); err != nil {
		return err
	}
	return affiliateRepoTx.IncrementCounters(upline.ID, 0, 0, amount, now)
}

func (s *CommissionService) recordSecretSantaTx(
	repoTx repository.CommissionRepository,
	event *models.OrderEvent,
	affiliate *models.Affiliate,
	level1Missing, level2Missing bool,
	adjustedProfit decimal.Decimal,
	now time.Time,
) error {
	var affiliateID *uint
	if affiliate != nil {
		affiliateID = &affiliate.ID
	}
	year := now.UTC().Year()
	if level1Missing {
		amount := percentOf(adjustedProfit, s.cfg.Commission.Level1RatePercent)
		if err := repoTx.AddSecretSantaContribution(&models.SecretSantaContribution{
			Year:        year,
			OrderNo:     event.OrderNo,
			AffiliateID: affiliateID,
			Level:       1,
			Amount:      models.NewMoneyFromDecimal(amount),
		}); err != nil {
			return err
		}
	}
	if level2Missing {
		amount := percentOf(adjustedProfit, s.cfg.Commission.Level2RatePercent)
		if err := repoTx.AddSecretSantaContribution(&models.SecretSantaContribution{
			Year:        year,
			OrderNo:     event.OrderNo,
			AffiliateID: affiliateID,
			Level:       2,
			Amount:      models.NewMoneyFromDecimal(amount),
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetSecretSantaPot 查询指定年度的资金池, year 为 0 时取当前年度
func (s *CommissionService) GetSecretSantaPot(year int) (*models.SecretSantaPot, error) {
	if year <= 0 {
		year = time.Now().UTC().Year()
	}
	return s.repo.GetSecretSantaPot(year)
}

func normalizeCancelReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case constants.CancelReasonCancelled:
		return constants.CancelReasonCancelled
	case constants.CancelReasonRefunded:
		return constants.CancelReasonRefunded
	case constants.CancelReasonDisputed:
		return constants.CancelReasonDisputed
	case constants.CancelReasonChargeback:
		return constants.CancelReasonChargeback
	case constants.CancelReasonFraud:
		return constants.CancelReasonFraud
	default:
		return constants.CancelReasonManual
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique") || strings.Contains(message, "duplicate")
}
