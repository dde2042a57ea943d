package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"gorm.io/gorm"
)

// OrderEventRepository 订单事件数据访问接口
type OrderEventRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) OrderEventRepository

	Create(event *models.OrderEvent) error
	GetByID(id uint) (*models.OrderEvent, error)
	GetByUniqueKey(orderNo, source, eventKind string) (*models.OrderEvent, error)
	MarkProcessed(id uint, status, processError string, at time.Time) error
}

// GormOrderEventRepository GORM 订单事件仓储
type GormOrderEventRepository struct {
	db *gorm.DB
}

// NewOrderEventRepository 创建订单事件仓储
func NewOrderEventRepository(db *gorm.DB) *GormOrderEventRepository {
	return &GormOrderEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderEventRepository) WithTx(tx *gorm.DB) OrderEventRepository {
	if tx == nil {
		return r
	}
	return &GormOrderEventRepository{db: tx}
}

// Transaction 执行事务
func (r *GormOrderEventRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建订单事件
func (r *GormOrderEventRepository) Create(event *models.OrderEvent) error {
	return r.db.Create(event).Error
}

// GetByID 按ID查询订单事件
func (r *GormOrderEventRepository) GetByID(id uint) (*models.OrderEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var event models.OrderEvent
	if err := r.db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetByUniqueKey 按幂等键查询订单事件
func (r *GormOrderEventRepository) GetByUniqueKey(orderNo, source, eventKind string) (*models.OrderEvent, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var event models.OrderEvent
	err := r.db.Where("order_no = ? AND source = ? AND event_kind = ?",
		orderNo, strings.TrimSpace(source), strings.TrimSpace(eventKind)).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// MarkProcessed 更新事件处理结果
func (r *GormOrderEventRepository) MarkProcessed(id uint, status, processError string, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.OrderEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"process_status": strings.TrimSpace(status),
			"process_error":  strings.TrimSpace(processError),
			"processed_at":   at,
			"updated_at":     at,
		}).Error
}
