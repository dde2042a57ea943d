package public

import (
	"errors"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

var orderEventIngestErrorRules = []mappedHandlerError{
	{target: service.ErrOrderEventInvalid, code: response.CodeBadRequest, key: "error.order_event_invalid"},
}

var payoutRequestErrorRules = []mappedHandlerError{
	{target: service.ErrAffiliateNotFound, code: response.CodeNotFound, key: "error.affiliate_not_found"},
	{target: service.ErrAffiliateSuspended, code: response.CodeForbidden, key: "error.affiliate_suspended"},
	{target: service.ErrPayoutDisabled, code: response.CodeBadRequest, key: "error.payout_disabled"},
	{target: service.ErrPayoutAmountInvalid, code: response.CodeBadRequest, key: "error.payout_amount_invalid"},
	{target: service.ErrPayoutBelowMinimum, code: response.CodeBadRequest, key: "error.payout_below_minimum"},
	{target: service.ErrPayoutBelowThreshold, code: response.CodeBadRequest, key: "error.payout_below_threshold"},
	{target: service.ErrPayoutNoDestination, code: response.CodeBadRequest, key: "error.payout_no_destination"},
	{target: service.ErrPayoutBalanceChanged, code: response.CodeBadRequest, key: "error.payout_balance_changed"},
	{target: service.ErrPayoutProviderFailed, code: response.CodeInternal, key: "error.payout_provider_failed"},
}

func respondOrderEventIngestError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderEventIngestErrorRules, response.CodeInternal, "error.order_event_ingest_failed")
}

func respondPayoutRequestError(c *gin.Context, err error) {
	// 余额不足单独处理: 带上可用/待解冻金额和可读说明
	var insufficient *service.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		response.ErrorWithData(c, response.CodeBadRequest, insufficient.Error(), gin.H{
			"available": insufficient.Available.StringFixed(2),
			"pending":   insufficient.Pending.StringFixed(2),
		})
		return
	}
	respondWithMappedError(c, err, payoutRequestErrorRules, response.CodeInternal, "error.payout_request_failed")
}
