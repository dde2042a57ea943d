package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// 业务错误定义
var (
	ErrAffiliateNotFound      = errors.New("affiliate not found")
	ErrAffiliateSuspended     = errors.New("affiliate suspended")
	ErrAffiliateExists        = errors.New("affiliate already exists")
	ErrAffiliateStatusInvalid = errors.New("affiliate status invalid")
	ErrReferrerNotFound       = errors.New("referrer not found")

	ErrOrderEventInvalid   = errors.New("order event invalid")
	ErrOrderEventDuplicate = errors.New("order event duplicate")
	ErrOrderEventNotFound  = errors.New("order event not found")

	ErrCommissionNotFound = errors.New("commission not found")

	ErrPayoutDisabled          = errors.New("payout channel disabled")
	ErrPayoutAmountInvalid     = errors.New("payout amount invalid")
	ErrPayoutBelowMinimum      = errors.New("payout amount below platform minimum")
	ErrPayoutBelowThreshold    = errors.New("payout amount below affiliate threshold")
	ErrPayoutNoDestination     = errors.New("payout destination not configured")
	ErrPayoutInsufficientFunds = errors.New("payout amount exceeds available balance")
	ErrPayoutBalanceChanged    = errors.New("available balance changed during selection")
	ErrPayoutProviderFailed    = errors.New("payout provider rejected the batch")
	ErrPayoutRequestNotFound   = errors.New("payout request not found")
	ErrPayoutStatusInvalid     = errors.New("payout request status invalid")

	ErrPoolAlreadySettled = errors.New("pool already settled for date")
	ErrPoolDateInvalid    = errors.New("pool settle date invalid")
)

// InsufficientBalanceError 可提现余额不足, 携带余额明细供前台展示
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
	Pending   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("requested %s exceeds available balance %s (pending=$%s not yet released)",
		e.Requested.StringFixed(2), e.Available.StringFixed(2), e.Pending.StringFixed(2))
}

// Unwrap 保持 errors.Is(err, ErrPayoutInsufficientFunds) 成立
func (e *InsufficientBalanceError) Unwrap() error {
	return ErrPayoutInsufficientFunds
}
