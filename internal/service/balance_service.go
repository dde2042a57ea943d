package service

import (
	"fmt"
	"math"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
)

// BalanceSummary 推广人余额快照, 全部来自实时汇总
type BalanceSummary struct {
	AffiliateID   uint         `json:"affiliate_id"`
	AffiliateCode string       `json:"affiliate_code"`
	Available     models.Money `json:"available"`
	Pending       models.Money `json:"pending"`
	InFlight      models.Money `json:"in_flight"`
	Paid          models.Money `json:"paid"`

	NextAvailableAt     *time.Time   `json:"next_available_at"`
	NextAvailableAmount models.Money `json:"next_available_amount"`

	RecentCancelled []CancelledCommission `json:"recent_cancelled"`
}

// CancelledCommission 最近取消的佣金摘要
type CancelledCommission struct {
	OrderNo     string       `json:"order_no"`
	Amount      models.Money `json:"amount"`
	Reason      string       `json:"reason"`
	CancelledAt time.Time    `json:"cancelled_at"`
}

// BalanceService 余额解析服务
type BalanceService struct {
	repo          repository.CommissionRepository
	affiliateRepo repository.AffiliateRepository
}

// NewBalanceService 创建余额解析服务
func NewBalanceService(repo repository.CommissionRepository, affiliateRepo repository.AffiliateRepository) *BalanceService {
	return &BalanceService{
		repo:          repo,
		affiliateRepo: affiliateRepo,
	}
}

// Resolve 按推广码解析余额
func (s *BalanceService) Resolve(code string) (*BalanceSummary, error) {
	affiliate, err := s.affiliateRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	return s.ResolveByAffiliate(affiliate)
}

// ResolveByAffiliate 按推广人解析余额
func (s *BalanceService) ResolveByAffiliate(affiliate *models.Affiliate) (*BalanceSummary, error) {
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	now := time.Now()

	aggregate, err := s.repo.BalanceAggregate(affiliate.ID, now)
	if err != nil {
		return nil, err
	}

	summary := &BalanceSummary{
		AffiliateID:     affiliate.ID,
		AffiliateCode:   affiliate.Code,
		Available:       models.NewMoneyFromDecimal(aggregate.Available),
		Pending:         models.NewMoneyFromDecimal(aggregate.Pending),
		InFlight:        models.NewMoneyFromDecimal(aggregate.InFlight),
		Paid:            models.NewMoneyFromDecimal(aggregate.Paid),
		RecentCancelled: []CancelledCommission{},
	}

	next, err := s.repo.NextAvailable(affiliate.ID, now)
	if err != nil {
		return nil, err
	}
	if next != nil {
		summary.NextAvailableAt = next.AvailableAt
		summary.NextAvailableAmount = next.Amount
	}

	cancelled, err := s.repo.ListRecentCancelled(affiliate.ID, 5)
	if err != nil {
		return nil, err
	}
	for i := range cancelled {
		summary.RecentCancelled = append(summary.RecentCancelled, CancelledCommission{
			OrderNo:     cancelled[i].OrderNo,
			Amount:      cancelled[i].Amount,
			Reason:      cancelled[i].CancelReason,
			CancelledAt: cancelled[i].UpdatedAt,
		})
	}
	return summary, nil
}

// CommissionStatusLabel 佣金状态的展示文案
func CommissionStatusLabel(commission *models.Commission, now time.Time) string {
	if commission == nil {
		return ""
	}
	switch commission.Status {
	case constants.CommissionStatusPaid:
		return "Paid"
	case constants.CommissionStatusCancelled:
		return "Cancelled"
	case constants.CommissionStatusPending:
		if commission.AvailableAt != nil && !commission.AvailableAt.After(now) {
			return "Available"
		}
		if commission.AvailableAt == nil {
			return "Pending"
		}
		days := int(math.Ceil(commission.AvailableAt.Sub(now).Hours() / 24))
		if days < 1 {
			days = 1
		}
		return fmt.Sprintf("Pending (%d days)", days)
	default:
		return commission.Status
	}
}
