package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateRepository 推广人数据访问接口
type AffiliateRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AffiliateRepository

	GetByID(id uint) (*models.Affiliate, error)
	GetByCode(code string) (*models.Affiliate, error)
	Create(affiliate *models.Affiliate) error
	Update(affiliate *models.Affiliate) error
	List(filter AffiliateListFilter) ([]models.Affiliate, int64, error)

	IncrementCounters(id uint, rewardPoints int64, conversions int64, mlmDelta decimal.Decimal, now time.Time) error
	UpdateLastSelfDiscountAt(id uint, at time.Time) error

	GetCustomerBinding(customerKey string) (*models.AffiliateCustomer, error)
	CreateCustomerBinding(binding *models.AffiliateCustomer) error
}

// GormAffiliateRepository GORM 推广人仓储
type GormAffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广人仓储
func NewAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAffiliateRepository) WithTx(tx *gorm.DB) AffiliateRepository {
	if tx == nil {
		return r
	}
	return &GormAffiliateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAffiliateRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取推广人
func (r *GormAffiliateRepository) GetByID(id uint) (*models.Affiliate, error) {
	if id == 0 {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.First(&affiliate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// GetByCode 按推广码获取推广人
func (r *GormAffiliateRepository) GetByCode(code string) (*models.Affiliate, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.Where("code = ?", normalized).First(&affiliate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// Create 创建推广人
func (r *GormAffiliateRepository) Create(affiliate *models.Affiliate) error {
	return r.db.Create(affiliate).Error
}

// Update 更新推广人
func (r *GormAffiliateRepository) Update(affiliate *models.Affiliate) error {
	return r.db.Save(affiliate).Error
}

// List 查询推广人列表
func (r *GormAffiliateRepository) List(filter AffiliateListFilter) ([]models.Affiliate, int64, error) {
	query := r.db.Model(&models.Affiliate{})
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("code = ?", strings.ToUpper(code))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("(email LIKE ? OR display_name LIKE ? OR code LIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Affiliate
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// IncrementCounters 累加奖励积分/成交次数/层级抽成统计
func (r *GormAffiliateRepository) IncrementCounters(id uint, rewardPoints int64, conversions int64, mlmDelta decimal.Decimal, now time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"updated_at": now,
	}
	if rewardPoints != 0 {
		updates["reward_points"] = gorm.Expr("reward_points + ?", rewardPoints)
	}
	if conversions != 0 {
		updates["conversion_count"] = gorm.Expr("conversion_count + ?", conversions)
	}
	if !mlmDelta.IsZero() {
		updates["mlm_earnings_total"] = gorm.Expr("mlm_earnings_total + ?", mlmDelta.Round(2))
	}
	return r.db.Model(&models.Affiliate{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateLastSelfDiscountAt 记录最近一次自购折扣时间
func (r *GormAffiliateRepository) UpdateLastSelfDiscountAt(id uint, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_self_discount_at": at,
			"updated_at":            at,
		}).Error
}

// GetCustomerBinding 查询客户绑定
func (r *GormAffiliateRepository) GetCustomerBinding(customerKey string) (*models.AffiliateCustomer, error) {
	key := strings.TrimSpace(customerKey)
	if key == "" {
		return nil, nil
	}
	var binding models.AffiliateCustomer
	if err := r.db.Where("customer_key = ?", key).First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

// CreateCustomerBinding 创建客户绑定, 已存在时忽略
func (r *GormAffiliateRepository) CreateCustomerBinding(binding *models.AffiliateCustomer) error {
	if binding == nil {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_key"}},
		DoNothing: true,
	}).Create(binding).Error
}
