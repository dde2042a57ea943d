package repository

import (
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"gorm.io/gorm"
)

// AlertRepository 人工审核告警数据访问接口
type AlertRepository interface {
	WithTx(tx *gorm.DB) AlertRepository

	Create(alert *models.ManualReviewAlert) error
	List(filter AlertListFilter) ([]models.ManualReviewAlert, int64, error)
	Resolve(id uint, at time.Time) error
}

// GormAlertRepository GORM 告警仓储
type GormAlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository 创建告警仓储
func NewAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAlertRepository) WithTx(tx *gorm.DB) AlertRepository {
	if tx == nil {
		return r
	}
	return &GormAlertRepository{db: tx}
}

// Create 创建告警
func (r *GormAlertRepository) Create(alert *models.ManualReviewAlert) error {
	return r.db.Create(alert).Error
}

// List 查询告警列表
func (r *GormAlertRepository) List(filter AlertListFilter) ([]models.ManualReviewAlert, int64, error) {
	query := r.db.Model(&models.ManualReviewAlert{})
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ManualReviewAlert
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Resolve 标记告警已处理
func (r *GormAlertRepository) Resolve(id uint, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.ManualReviewAlert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":   true,
			"updated_at": at,
		}).Error
}
