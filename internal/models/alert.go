package models

import "time"

// ManualReviewAlert 人工审核告警
type ManualReviewAlert struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Kind            string `gorm:"size:64;not null;index" json:"kind"`
	OrderNo         string `gorm:"size:64;index" json:"order_no"`
	CommissionID    *uint  `gorm:"index" json:"commission_id"`
	PayoutRequestID *uint  `gorm:"index" json:"payout_request_id"`
	Message         string `gorm:"size:512;not null" json:"message"`
	Resolved        bool   `gorm:"not null;default:false;index" json:"resolved"`
}

// TableName 表名
func (ManualReviewAlert) TableName() string {
	return "manual_review_alerts"
}
