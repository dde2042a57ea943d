package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/cache"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/payment/paypal"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const poolSettleLockTTL = 5 * time.Minute

// PoolService 每日奖池结算服务
type PoolService struct {
	repo          repository.PoolRepository
	affiliateRepo repository.AffiliateRepository
	alertRepo     repository.AlertRepository
	provider      PayoutProvider
	cfg           *config.Config
}

// NewPoolService 创建奖池结算服务
func NewPoolService(
	repo repository.PoolRepository,
	affiliateRepo repository.AffiliateRepository,
	alertRepo repository.AlertRepository,
	provider PayoutProvider,
	cfg *config.Config,
) *PoolService {
	return &PoolService{
		repo:          repo,
		affiliateRepo: affiliateRepo,
		alertRepo:     alertRepo,
		provider:      provider,
		cfg:           cfg,
	}
}

// SettleDue 结算所有已到期且未结算的统计日
func (s *PoolService) SettleDue(now time.Time) error {
	today := now.UTC().Format(constants.StatDateLayout)
	for {
		statDate, err := s.repo.FirstUnsettledDate(today)
		if err != nil {
			return err
		}
		if statDate == "" {
			return nil
		}
		if _, err := s.SettleDate(statDate); err != nil {
			// 已被其他实例结算或持锁, 本轮不再推进
			if err == ErrPoolAlreadySettled {
				return nil
			}
			return err
		}
	}
}

// SettleDate 结算指定统计日
//
// king_midas_settlements(stat_date) 唯一索引保证单日只结算一次;
// Redis 锁只用来避免多实例同时空跑。前三名按 50/30/10 分成,
// 剩余奖池滚存不分配。
func (s *PoolService) SettleDate(statDate string) (*models.KingMidasSettlement, error) {
	statDate = strings.TrimSpace(statDate)
	if _, err := time.Parse(constants.StatDateLayout, statDate); err != nil {
		return nil, ErrPoolDateInvalid
	}

	ctx := context.Background()
	lockKey := "pool:settle:" + statDate
	locked, err := cache.TryLock(ctx, lockKey, poolSettleLockTTL)
	if err != nil {
		logger.Warnw("pool_settle_lock_failed", "stat_date", statDate, "error", err)
	} else if !locked {
		return nil, ErrPoolAlreadySettled
	}
	defer func() {
		if locked {
			_ = cache.Unlock(ctx, lockKey)
		}
	}()

	if existing, err := s.repo.GetSettlementByDate(statDate); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrPoolAlreadySettled
	}

	totalProfit, err := s.repo.SumProfitByDate(statDate)
	if err != nil {
		return nil, err
	}
	poolAmount := percentOf(totalProfit, s.cfg.Commission.PoolRatePercent)

	settlement := &models.KingMidasSettlement{
		StatDate:    statDate,
		TotalProfit: models.NewMoneyFromDecimal(totalProfit),
		PoolAmount:  models.NewMoneyFromDecimal(poolAmount),
	}

	var winners []models.KingMidasPayout
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		if err := repoTx.CreateSettlement(settlement); err != nil {
			if isUniqueViolation(err) {
				return ErrPoolAlreadySettled
			}
			return err
		}
		if poolAmount.Sign() <= 0 {
			return nil
		}

		stats, err := repoTx.ListStatsByDate(statDate)
		if err != nil {
			return err
		}
		for i := range stats {
			rank := i + 1
			share := decimal.Zero
			if i < len(constants.PoolSharePercents) {
				share = percentOf(poolAmount, constants.PoolSharePercents[i])
			}
			if err := repoTx.UpdateStatRank(stats[i].ID, rank, share); err != nil {
				return err
			}
			if share.Sign() <= 0 {
				continue
			}
			payout := models.KingMidasPayout{
				StatDate:     statDate,
				AffiliateID:  stats[i].AffiliateID,
				Rank:         rank,
				SharePercent: constants.PoolSharePercents[i],
				Amount:       models.NewMoneyFromDecimal(share),
				Status:       constants.PoolPayoutStatusPending,
			}
			if err := repoTx.CreatePoolPayout(&payout); err != nil {
				return err
			}
			winners = append(winners, payout)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.disburseWinners(statDate, winners)
	return settlement, nil
}

// disburseWinners 通道批量发放名次奖金, 逐项对账
func (s *PoolService) disburseWinners(statDate string, winners []models.KingMidasPayout) {
	if len(winners) == 0 {
		return
	}

	items := make([]paypal.BatchItem, 0, len(winners))
	byItemID := make(map[string]*models.KingMidasPayout, len(winners))
	for i := range winners {
		winner := &winners[i]
		affiliate, err := s.affiliateRepo.GetByID(winner.AffiliateID)
		if err != nil {
			logger.Warnw("pool_disburse_fetch_affiliate_failed", "affiliate_id", winner.AffiliateID, "error", err)
			continue
		}
		destination := ""
		if affiliate != nil {
			destination = strings.TrimSpace(affiliate.PayoutEmail)
		}
		if destination == "" {
			// 无收款账户, 留在 pending 等人工处理
			logger.Infow("pool_disburse_skip_no_destination", "stat_date", statDate, "affiliate_id", winner.AffiliateID, "rank", winner.Rank)
			continue
		}
		senderItemID := fmt.Sprintf("KM-%s-%d", statDate, winner.Rank)
		byItemID[senderItemID] = winner
		items = append(items, paypal.BatchItem{
			ReceiverEmail: destination,
			Amount:        winner.Amount.Decimal.StringFixed(2),
			Currency:      s.cfg.Payout.Currency,
			SenderItemID:  senderItemID,
			Note:          fmt.Sprintf("King Midas daily prize %s rank %d", statDate, winner.Rank),
		})
	}
	if len(items) == 0 {
		return
	}

	result, err := s.provider.CreateBatch(paypal.BatchInput{
		SenderBatchID: "KM-" + statDate,
		EmailSubject:  s.cfg.Paypal.EmailSubject,
		Items:         items,
	})
	if err != nil {
		logger.Errorw("pool_disburse_provider_failed", "stat_date", statDate, "error", err)
		for _, winner := range byItemID {
			winner.Status = constants.PoolPayoutStatusFailed
			winner.FailReason = truncateReason(err.Error())
			if updateErr := s.repo.UpdatePoolPayout(winner); updateErr != nil {
				logger.Errorw("pool_disburse_mark_failed_error", "pool_payout_id", winner.ID, "error", updateErr)
			}
		}
		if alertErr := s.alertRepo.Create(&models.ManualReviewAlert{
			Kind:    constants.AlertKindPoolProviderFailed,
			Message: fmt.Sprintf("pool settlement %s provider batch failed: %s", statDate, truncateReason(err.Error())),
		}); alertErr != nil {
			logger.Errorw("pool_disburse_alert_failed", "stat_date", statDate, "error", alertErr)
		}
		return
	}

	for _, item := range result.Items {
		winner, ok := byItemID[item.SenderItemID]
		if !ok {
			continue
		}
		winner.ProviderBatchID = result.BatchID
		winner.ProviderItemID = item.ItemID
		switch strings.ToUpper(item.TransactionStatus) {
		case "SUCCESS":
			winner.Status = constants.PoolPayoutStatusPaid
		case "FAILED", "BLOCKED", "RETURNED", "REFUNDED":
			winner.Status = constants.PoolPayoutStatusFailed
			winner.FailReason = item.ErrorMessage
		default:
			// PENDING/UNCLAIMED 保持 pending
		}
		if err := s.repo.UpdatePoolPayout(winner); err != nil {
			logger.Errorw("pool_disburse_update_failed", "pool_payout_id", winner.ID, "error", err)
		}
	}
}

// Rankings 查询某日奖池排行
func (s *PoolService) Rankings(statDate string) ([]models.KingMidasDailyStat, decimal.Decimal, error) {
	statDate = strings.TrimSpace(statDate)
	if _, err := time.Parse(constants.StatDateLayout, statDate); err != nil {
		return nil, decimal.Zero, ErrPoolDateInvalid
	}
	stats, err := s.repo.ListStatsByDate(statDate)
	if err != nil {
		return nil, decimal.Zero, err
	}
	totalProfit, err := s.repo.SumProfitByDate(statDate)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return stats, percentOf(totalProfit, s.cfg.Commission.PoolRatePercent), nil
}

// ListPoolPayouts 查询名次奖金列表
func (s *PoolService) ListPoolPayouts(filter repository.PoolPayoutListFilter) ([]models.KingMidasPayout, int64, error) {
	return s.repo.ListPoolPayouts(filter)
}
