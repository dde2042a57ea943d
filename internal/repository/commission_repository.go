package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	Create(commission *models.Commission) error
	Update(commission *models.Commission) error
	GetByID(id uint) (*models.Commission, error)
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
	ListByOrderForUpdate(orderNo string, statuses []string) ([]models.Commission, error)
	ListAvailableForUpdate(affiliateID uint, now time.Time) ([]models.Commission, error)
	ListByPayoutIDForUpdate(payoutID uint) ([]models.Commission, error)
	BatchUpdate(ids []uint, updates map[string]interface{}) (int64, error)

	BalanceAggregate(affiliateID uint, now time.Time) (AffiliateBalanceAggregate, error)
	NextAvailable(affiliateID uint, now time.Time) (*models.Commission, error)
	ListRecentCancelled(affiliateID uint, limit int) ([]models.Commission, error)

	CreateStatusLog(log *models.CommissionStatusLog) error
	ListStatusLogs(commissionID uint) ([]models.CommissionStatusLog, error)

	CreateMLMEarning(earning *models.MLMEarning) error

	AddSecretSantaContribution(contribution *models.SecretSantaContribution) error
	GetSecretSantaPot(year int) (*models.SecretSantaPot, error)
}

// GormCommissionRepository GORM 佣金台账仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金台账仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(commission *models.Commission) error {
	return r.db.Create(commission).Error
}

// Update 更新佣金记录
func (r *GormCommissionRepository) Update(commission *models.Commission) error {
	return r.db.Save(commission).Error
}

// GetByID 按ID查询佣金
func (r *GormCommissionRepository) GetByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// List 查询佣金列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{}).Preload("Affiliate")
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Where("order_no LIKE ?", "%"+orderNo+"%")
	}
	if ctype := strings.TrimSpace(filter.CommissionType); ctype != "" {
		query = query.Where("commission_type = ?", ctype)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Commission
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByOrderForUpdate 按订单查询佣金并加锁
func (r *GormCommissionRepository) ListByOrderForUpdate(orderNo string, statuses []string) ([]models.Commission, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return []models.Commission{}, nil
	}
	query := r.db.Model(&models.Commission{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_no = ?", orderNo)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var rows []models.Commission
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAvailableForUpdate 锁定可打款佣金, 按解冻时间从早到晚
func (r *GormCommissionRepository) ListAvailableForUpdate(affiliateID uint, now time.Time) ([]models.Commission, error) {
	if affiliateID == 0 {
		return []models.Commission{}, nil
	}
	var rows []models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("affiliate_id = ? AND status = ? AND payout_request_id IS NULL AND available_at IS NOT NULL AND available_at <= ?",
			affiliateID, constants.CommissionStatusPending, now).
		Order("available_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByPayoutIDForUpdate 按打款申请查询并锁定佣金
func (r *GormCommissionRepository) ListByPayoutIDForUpdate(payoutID uint) ([]models.Commission, error) {
	if payoutID == 0 {
		return []models.Commission{}, nil
	}
	var rows []models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payout_request_id = ?", payoutID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// BatchUpdate 批量更新佣金记录
func (r *GormCommissionRepository) BatchUpdate(ids []uint, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Commission{}).Where("id IN ?", ids).Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// BalanceAggregate 实时汇总推广人余额
func (r *GormCommissionRepository) BalanceAggregate(affiliateID uint, now time.Time) (AffiliateBalanceAggregate, error) {
	aggregate := AffiliateBalanceAggregate{
		Available: decimal.Zero,
		Pending:   decimal.Zero,
		InFlight:  decimal.Zero,
		Paid:      decimal.Zero,
	}
	if affiliateID == 0 {
		return aggregate, nil
	}

	sum := func(query *gorm.DB) (decimal.Decimal, error) {
		var row struct {
			Total decimal.Decimal `gorm:"column:total"`
		}
		if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&row).Error; err != nil {
			return decimal.Zero, err
		}
		return row.Total.Round(2), nil
	}

	var err error
	aggregate.Available, err = sum(r.db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND payout_request_id IS NULL AND available_at IS NOT NULL AND available_at <= ?",
			affiliateID, constants.CommissionStatusPending, now))
	if err != nil {
		return aggregate, err
	}
	aggregate.Pending, err = sum(r.db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND payout_request_id IS NULL AND (available_at IS NULL OR available_at > ?)",
			affiliateID, constants.CommissionStatusPending, now))
	if err != nil {
		return aggregate, err
	}
	aggregate.InFlight, err = sum(r.db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ? AND payout_request_id IS NOT NULL",
			affiliateID, constants.CommissionStatusPending))
	if err != nil {
		return aggregate, err
	}
	aggregate.Paid, err = sum(r.db.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, constants.CommissionStatusPaid))
	if err != nil {
		return aggregate, err
	}
	return aggregate, nil
}

// NextAvailable 查询下一笔即将解冻的佣金
func (r *GormCommissionRepository) NextAvailable(affiliateID uint, now time.Time) (*models.Commission, error) {
	if affiliateID == 0 {
		return nil, nil
	}
	var commission models.Commission
	err := r.db.Where("affiliate_id = ? AND status = ? AND payout_request_id IS NULL AND available_at > ?",
		affiliateID, constants.CommissionStatusPending, now).
		Order("available_at asc, id asc").
		First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// ListRecentCancelled 查询最近取消的佣金
func (r *GormCommissionRepository) ListRecentCancelled(affiliateID uint, limit int) ([]models.Commission, error) {
	if affiliateID == 0 {
		return []models.Commission{}, nil
	}
	if limit <= 0 {
		limit = 5
	}
	var rows []models.Commission
	if err := r.db.Where("affiliate_id = ? AND status = ?", affiliateID, constants.CommissionStatusCancelled).
		Order("updated_at desc, id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateStatusLog 追加状态流转记录
func (r *GormCommissionRepository) CreateStatusLog(log *models.CommissionStatusLog) error {
	return r.db.Create(log).Error
}

// ListStatusLogs 查询佣金状态流转记录
func (r *GormCommissionRepository) ListStatusLogs(commissionID uint) ([]models.CommissionStatusLog, error) {
	if commissionID == 0 {
		return []models.CommissionStatusLog{}, nil
	}
	var rows []models.CommissionStatusLog
	if err := r.db.Where("commission_id = ?", commissionID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateMLMEarning 创建层级抽成明细
func (r *GormCommissionRepository) CreateMLMEarning(earning *models.MLMEarning) error {
	return r.db.Create(earning).Error
}

// AddSecretSantaContribution 入账资金池并记录明细
//
// 明细表 (order_no, level) 唯一, 冲突时整体为 no-op, 重放不会重复累加余额。
func (r *GormCommissionRepository) AddSecretSantaContribution(contribution *models.SecretSantaContribution) error {
	if contribution == nil || contribution.Amount.IsZero() {
		return nil
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_no"}, {Name: "level"}},
		DoNothing: true,
	}).Create(contribution)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	var pot models.SecretSantaPot
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", contribution.Year).
		First(&pot).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		pot = models.SecretSantaPot{Year: contribution.Year, BalanceAmount: models.NewMoneyFromDecimal(decimal.Zero)}
		if err := r.db.Create(&pot).Error; err != nil {
			return err
		}
	}
	pot.BalanceAmount = models.NewMoneyFromDecimal(pot.BalanceAmount.Add(contribution.Amount.Decimal))
	return r.db.Save(&pot).Error
}

// GetSecretSantaPot 查询指定年度的资金池余额
func (r *GormCommissionRepository) GetSecretSantaPot(year int) (*models.SecretSantaPot, error) {
	var pot models.SecretSantaPot
	if err := r.db.Where("year = ?", year).First(&pot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pot, nil
}
