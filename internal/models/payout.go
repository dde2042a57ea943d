package models

import "time"

// PayoutRequest 打款申请
type PayoutRequest struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RequestNo   string `gorm:"size:64;uniqueIndex;not null" json:"request_no"`
	AffiliateID uint   `gorm:"not null;index" json:"affiliate_id"`

	Amount      Money  `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	Currency    string `gorm:"size:8;not null;default:USD" json:"currency"`
	Destination string `gorm:"size:255;not null" json:"destination"` // 收款账户

	Status          string     `gorm:"size:32;not null;default:approved;index" json:"status"` // approved/paid/failed/pending_reconcile/manual_review
	ProviderBatchID string     `gorm:"size:128;index" json:"provider_batch_id"`
	FailReason      string     `gorm:"size:512" json:"fail_reason"`
	PaidAt          *time.Time `json:"paid_at"`

	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (PayoutRequest) TableName() string {
	return "payout_requests"
}
