package public

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetAffiliateBalance 查询推广人实时余额
func (h *Handler) GetAffiliateBalance(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	summary, err := h.BalanceService.Resolve(code)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			respondError(c, response.CodeNotFound, "error.affiliate_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.balance_fetch_failed", err)
		return
	}
	response.Success(c, summary)
}

// AffiliateCommissionView 佣金记录响应行, 附状态展示文案
type AffiliateCommissionView struct {
	models.Commission
	StatusLabel string `json:"status_label"`
}

// ListAffiliateCommissions 查询推广人佣金记录
func (h *Handler) ListAffiliateCommissions(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	affiliate, err := h.AffiliateService.GetByCode(code)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			respondError(c, response.CodeNotFound, "error.affiliate_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.commission_fetch_failed", err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := strings.TrimSpace(c.Query("status"))

	rows, total, err := h.CommissionService.List(repository.CommissionListFilter{
		AffiliateID: affiliate.ID,
		Status:      status,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.commission_fetch_failed", err)
		return
	}

	now := time.Now()
	views := make([]AffiliateCommissionView, 0, len(rows))
	for i := range rows {
		views = append(views, AffiliateCommissionView{
			Commission:  rows[i],
			StatusLabel: service.CommissionStatusLabel(&rows[i], now),
		})
	}
	response.SuccessWithPage(c, views, response.BuildPagination(page, pageSize, total))
}

// AffiliatePayoutRequest 提现申请请求
type AffiliatePayoutRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Destination string `json:"destination"`
}

// RequestAffiliatePayout 提交提现申请
func (h *Handler) RequestAffiliatePayout(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	var req AffiliatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.payout_amount_invalid", nil)
		return
	}

	request, err := h.PayoutService.RequestPayout(code, amount, req.Destination)
	if err != nil {
		respondPayoutRequestError(c, err)
		return
	}
	response.Success(c, request)
}

// ListAffiliatePayouts 查询推广人提现记录
func (h *Handler) ListAffiliatePayouts(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	affiliate, err := h.AffiliateService.GetByCode(code)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			respondError(c, response.CodeNotFound, "error.affiliate_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.payout_fetch_failed", err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := strings.TrimSpace(c.Query("status"))

	rows, total, err := h.PayoutService.List(repository.PayoutListFilter{
		AffiliateID: affiliate.ID,
		Status:      status,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.payout_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
