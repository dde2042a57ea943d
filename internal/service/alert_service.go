package service

import (
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
)

// AlertService 人工审核告警服务
type AlertService struct {
	repo repository.AlertRepository
}

// NewAlertService 创建告警服务
func NewAlertService(repo repository.AlertRepository) *AlertService {
	return &AlertService{repo: repo}
}

// List 查询告警列表
func (s *AlertService) List(filter repository.AlertListFilter) ([]models.ManualReviewAlert, int64, error) {
	return s.repo.List(filter)
}

// Resolve 标记告警已处理
func (s *AlertService) Resolve(id uint) error {
	return s.repo.Resolve(id, time.Now())
}
