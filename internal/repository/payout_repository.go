package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository 打款申请数据访问接口
type PayoutRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PayoutRepository

	Create(request *models.PayoutRequest) error
	Update(request *models.PayoutRequest) error
	GetByID(id uint) (*models.PayoutRequest, error)
	GetByIDForUpdate(id uint) (*models.PayoutRequest, error)
	List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error)
	ListPendingReconcile(before time.Time, limit int) ([]models.PayoutRequest, error)
	ListStaleApproved(before time.Time, limit int) ([]models.PayoutRequest, error)
}

// GormPayoutRepository GORM 打款申请仓储
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建打款申请仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPayoutRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建打款申请
func (r *GormPayoutRepository) Create(request *models.PayoutRequest) error {
	return r.db.Create(request).Error
}

// Update 更新打款申请
func (r *GormPayoutRepository) Update(request *models.PayoutRequest) error {
	return r.db.Save(request).Error
}

// GetByID 按ID查询打款申请
func (r *GormPayoutRepository) GetByID(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var request models.PayoutRequest
	if err := r.db.Preload("Affiliate").First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// GetByIDForUpdate 按ID锁定查询打款申请
func (r *GormPayoutRepository) GetByIDForUpdate(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var request models.PayoutRequest
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// List 查询打款申请列表
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	query := r.db.Model(&models.PayoutRequest{}).Preload("Affiliate")
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if requestNo := strings.TrimSpace(filter.RequestNo); requestNo != "" {
		query = query.Where("request_no LIKE ?", "%"+requestNo+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.PayoutRequest
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListPendingReconcile 查询等待对账的打款申请
func (r *GormPayoutRepository) ListPendingReconcile(before time.Time, limit int) ([]models.PayoutRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.PayoutRequest
	if err := r.db.Where("status = ? AND updated_at <= ?", constants.PayoutStatusPendingReconcile, before).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStaleApproved 查询长期停留在 approved 的打款申请
//
// approved 只应在通道调用前短暂存在; 超时未推进说明进程在调用前后
// 中断, 需要兜底处理。
func (r *GormPayoutRepository) ListStaleApproved(before time.Time, limit int) ([]models.PayoutRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.PayoutRequest
	if err := r.db.Where("status = ? AND updated_at <= ?", constants.PayoutStatusApproved, before).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
