package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/gin-gonic/gin"
)

// ListPayouts 管理端打款申请列表
func (h *Handler) ListPayouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	affiliateID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_id")), 10, 64)

	rows, total, err := h.PayoutService.List(repository.PayoutListFilter{
		AffiliateID: uint(affiliateID),
		Status:      strings.TrimSpace(c.Query("status")),
		RequestNo:   strings.TrimSpace(c.Query("request_no")),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.payout_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ReconcilePayout 管理端手动触发单笔对账
func (h *Handler) ReconcilePayout(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.PayoutService.Reconcile(uint(id)); err != nil {
		if errors.Is(err, service.ErrPayoutRequestNotFound) {
			respondError(c, response.CodeNotFound, "error.payout_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.payout_reconcile_failed", err)
		return
	}
	request, err := h.PayoutService.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "error.payout_fetch_failed", err)
		return
	}
	response.Success(c, request)
}
