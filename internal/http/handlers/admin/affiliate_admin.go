package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateAffiliateRequest 创建推广人请求
type CreateAffiliateRequest struct {
	Email           string `json:"email" binding:"required"`
	DisplayName     string `json:"display_name"`
	ReferrerCode    string `json:"referrer_code"`
	PayoutThreshold string `json:"payout_threshold"`
	PayoutEmail     string `json:"payout_email"`
}

// AffiliateStatusRequest 推广人状态更新请求
type AffiliateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateAffiliate 管理端创建推广人
func (h *Handler) CreateAffiliate(c *gin.Context) {
	var req CreateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	threshold := decimal.Zero
	if raw := strings.TrimSpace(req.PayoutThreshold); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.Sign() < 0 {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
		threshold = parsed
	}

	affiliate, err := h.AffiliateService.Create(service.AffiliateInput{
		Email:           req.Email,
		DisplayName:     req.DisplayName,
		ReferrerCode:    req.ReferrerCode,
		PayoutThreshold: threshold,
		PayoutEmail:     req.PayoutEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReferrerNotFound):
			respondError(c, response.CodeBadRequest, "error.referrer_not_found", nil)
		case errors.Is(err, service.ErrAffiliateExists):
			respondError(c, response.CodeBadRequest, "error.affiliate_exists", nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}
	response.Success(c, affiliate)
}

// ListAffiliates 管理端推广人列表, 附实时余额
func (h *Handler) ListAffiliates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.AffiliateService.List(repository.AffiliateListFilter{
		Code:     strings.TrimSpace(c.Query("code")),
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.affiliate_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// UpdateAffiliateStatus 管理端更新推广人状态
func (h *Handler) UpdateAffiliateStatus(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	var req AffiliateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	affiliate, err := h.AffiliateService.UpdateStatus(code, strings.TrimSpace(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAffiliateNotFound):
			respondError(c, response.CodeNotFound, "error.affiliate_not_found", nil)
		case errors.Is(err, service.ErrAffiliateStatusInvalid):
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}
	response.Success(c, affiliate)
}
