package repository

import (
	"errors"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PoolRepository 每日奖池数据访问接口
type PoolRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PoolRepository

	UpsertDailyStat(affiliateID uint, statDate string, profitDelta decimal.Decimal, orderDelta int64) error
	UpdateStatRank(statID uint, rank int, poolShare decimal.Decimal) error
	ListStatsByDate(statDate string) ([]models.KingMidasDailyStat, error)
	SumProfitByDate(statDate string) (decimal.Decimal, error)
	FirstUnsettledDate(beforeDate string) (string, error)

	GetSettlementByDate(statDate string) (*models.KingMidasSettlement, error)
	CreateSettlement(settlement *models.KingMidasSettlement) error

	CreatePoolPayout(payout *models.KingMidasPayout) error
	UpdatePoolPayout(payout *models.KingMidasPayout) error
	ListPoolPayouts(filter PoolPayoutListFilter) ([]models.KingMidasPayout, int64, error)
}

// GormPoolRepository GORM 奖池仓储
type GormPoolRepository struct {
	db *gorm.DB
}

// NewPoolRepository 创建奖池仓储
func NewPoolRepository(db *gorm.DB) *GormPoolRepository {
	return &GormPoolRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPoolRepository) WithTx(tx *gorm.DB) PoolRepository {
	if tx == nil {
		return r
	}
	return &GormPoolRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPoolRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// UpsertDailyStat 累加推广人当日利润统计
func (r *GormPoolRepository) UpsertDailyStat(affiliateID uint, statDate string, profitDelta decimal.Decimal, orderDelta int64) error {
	if affiliateID == 0 || strings.TrimSpace(statDate) == "" {
		return nil
	}
	stat := models.KingMidasDailyStat{
		AffiliateID:  affiliateID,
		StatDate:     statDate,
		ProfitAmount: models.NewMoneyFromDecimal(profitDelta),
		OrderCount:   orderDelta,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "affiliate_id"}, {Name: "stat_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"profit_amount": gorm.Expr("profit_amount + ?", profitDelta.Round(2)),
			"order_count":   gorm.Expr("order_count + ?", orderDelta),
		}),
	}).Create(&stat).Error
}

// UpdateStatRank 结算时回填当日名次与奖池分成
func (r *GormPoolRepository) UpdateStatRank(statID uint, rank int, poolShare decimal.Decimal) error {
	if statID == 0 {
		return nil
	}
	return r.db.Model(&models.KingMidasDailyStat{}).
		Where("id = ?", statID).
		Updates(map[string]interface{}{
			"rank":              rank,
			"pool_share_amount": poolShare.Round(2),
		}).Error
}

// ListStatsByDate 查询某日统计, 利润降序, 并列时按先入榜优先
func (r *GormPoolRepository) ListStatsByDate(statDate string) ([]models.KingMidasDailyStat, error) {
	if strings.TrimSpace(statDate) == "" {
		return []models.KingMidasDailyStat{}, nil
	}
	var rows []models.KingMidasDailyStat
	if err := r.db.Preload("Affiliate").
		Where("stat_date = ?", statDate).
		Order("profit_amount desc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumProfitByDate 汇总某日总利润
func (r *GormPoolRepository) SumProfitByDate(statDate string) (decimal.Decimal, error) {
	if strings.TrimSpace(statDate) == "" {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.KingMidasDailyStat{}).
		Where("stat_date = ?", statDate).
		Select("COALESCE(SUM(profit_amount), 0) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// FirstUnsettledDate 查询最早一个未结算的统计日
func (r *GormPoolRepository) FirstUnsettledDate(beforeDate string) (string, error) {
	if strings.TrimSpace(beforeDate) == "" {
		return "", nil
	}
	var row struct {
		StatDate string `gorm:"column:stat_date"`
	}
	err := r.db.Model(&models.KingMidasDailyStat{}).
		Select("stat_date").
		Where("stat_date < ?", beforeDate).
		Where("stat_date NOT IN (?)", r.db.Model(&models.KingMidasSettlement{}).Select("stat_date")).
		Order("stat_date asc").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.StatDate, nil
}

// GetSettlementByDate 按日期查询结算记录
func (r *GormPoolRepository) GetSettlementByDate(statDate string) (*models.KingMidasSettlement, error) {
	if strings.TrimSpace(statDate) == "" {
		return nil, nil
	}
	var settlement models.KingMidasSettlement
	if err := r.db.Where("stat_date = ?", statDate).First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

// CreateSettlement 创建结算记录, 唯一索引保证单日只结算一次
func (r *GormPoolRepository) CreateSettlement(settlement *models.KingMidasSettlement) error {
	return r.db.Create(settlement).Error
}

// CreatePoolPayout 创建名次奖金记录
func (r *GormPoolRepository) CreatePoolPayout(payout *models.KingMidasPayout) error {
	return r.db.Create(payout).Error
}

// UpdatePoolPayout 更新名次奖金记录
func (r *GormPoolRepository) UpdatePoolPayout(payout *models.KingMidasPayout) error {
	return r.db.Save(payout).Error
}

// ListPoolPayouts 查询名次奖金列表
func (r *GormPoolRepository) ListPoolPayouts(filter PoolPayoutListFilter) ([]models.KingMidasPayout, int64, error) {
	query := r.db.Model(&models.KingMidasPayout{}).Preload("Affiliate")
	if statDate := strings.TrimSpace(filter.StatDate); statDate != "" {
		query = query.Where("stat_date = ?", statDate)
	}
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.KingMidasPayout
	if err := query.Order("stat_date desc, rank asc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
