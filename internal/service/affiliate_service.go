package service

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	affiliateCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	affiliateCodeLength   = 8
)

// AffiliateInput 推广人创建/更新入参
type AffiliateInput struct {
	Email           string          `json:"email"`
	DisplayName     string          `json:"display_name"`
	ReferrerCode    string          `json:"referrer_code"`
	PayoutThreshold decimal.Decimal `json:"payout_threshold"`
	PayoutEmail     string          `json:"payout_email"`
}

// AffiliateSummary 推广人列表行, 余额为实时汇总
type AffiliateSummary struct {
	Affiliate models.Affiliate `json:"affiliate"`
	Balance   *BalanceSummary  `json:"balance,omitempty"`
}

// AffiliateService 推广人档案服务
type AffiliateService struct {
	repo           repository.AffiliateRepository
	balanceService *BalanceService
}

// NewAffiliateService 创建推广人档案服务
func NewAffiliateService(repo repository.AffiliateRepository, balanceService *BalanceService) *AffiliateService {
	return &AffiliateService{
		repo:           repo,
		balanceService: balanceService,
	}
}

// Create 创建推广人, 自动生成推广码
func (s *AffiliateService) Create(input AffiliateInput) (*models.Affiliate, error) {
	var referrerID *uint
	if code := strings.TrimSpace(input.ReferrerCode); code != "" {
		referrer, err := s.repo.GetByCode(code)
		if err != nil {
			return nil, err
		}
		if referrer == nil {
			return nil, ErrReferrerNotFound
		}
		referrerID = &referrer.ID
	}

	affiliate := &models.Affiliate{
		Email:           strings.TrimSpace(input.Email),
		DisplayName:     strings.TrimSpace(input.DisplayName),
		Status:          constants.AffiliateStatusActive,
		ReferrerID:      referrerID,
		PayoutThreshold: models.NewMoneyFromDecimal(input.PayoutThreshold),
		PayoutEmail:     strings.TrimSpace(input.PayoutEmail),
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateAffiliateCode()
		if err != nil {
			return nil, err
		}
		affiliate.Code = code
		if err := s.repo.Create(affiliate); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		return affiliate, nil
	}
	return nil, ErrAffiliateExists
}

// GetByCode 按推广码查询
func (s *AffiliateService) GetByCode(code string) (*models.Affiliate, error) {
	affiliate, err := s.repo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}
	return affiliate, nil
}

// UpdateStatus 更新推广人状态
func (s *AffiliateService) UpdateStatus(code, status string) (*models.Affiliate, error) {
	affiliate, err := s.GetByCode(code)
	if err != nil {
		return nil, err
	}
	switch status {
	case constants.AffiliateStatusActive, constants.AffiliateStatusSuspended:
	default:
		return nil, ErrAffiliateStatusInvalid
	}
	affiliate.Status = status
	affiliate.UpdatedAt = time.Now()
	if err := s.repo.Update(affiliate); err != nil {
		return nil, err
	}
	return affiliate, nil
}

// List 推广人列表, 附带实时余额
func (s *AffiliateService) List(filter repository.AffiliateListFilter) ([]AffiliateSummary, int64, error) {
	rows, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]AffiliateSummary, 0, len(rows))
	for i := range rows {
		summary := AffiliateSummary{Affiliate: rows[i]}
		if s.balanceService != nil {
			balance, err := s.balanceService.ResolveByAffiliate(&rows[i])
			if err != nil {
				return nil, 0, err
			}
			summary.Balance = balance
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

// generateAffiliateCode 生成去歧义字符集的推广码
func generateAffiliateCode() (string, error) {
	var builder strings.Builder
	builder.Grow(affiliateCodeLength)
	max := big.NewInt(int64(len(affiliateCodeAlphabet)))
	for i := 0; i < affiliateCodeLength; i++ {
		index, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(affiliateCodeAlphabet[index.Int64()])
	}
	return builder.String(), nil
}
