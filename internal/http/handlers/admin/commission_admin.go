package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListCommissions 管理端佣金台账列表
func (h *Handler) ListCommissions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	affiliateID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_id")), 10, 64)

	filter := repository.CommissionListFilter{
		AffiliateID:    uint(affiliateID),
		OrderNo:        strings.TrimSpace(c.Query("order_no")),
		CommissionType: strings.TrimSpace(c.Query("commission_type")),
		Status:         strings.TrimSpace(c.Query("status")),
		Page:           page,
		PageSize:       pageSize,
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		if from, err := time.Parse(constants.StatDateLayout, raw); err == nil {
			filter.CreatedFrom = &from
		}
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		if to, err := time.Parse(constants.StatDateLayout, raw); err == nil {
			end := to.AddDate(0, 0, 1)
			filter.CreatedTo = &end
		}
	}

	rows, total, err := h.CommissionService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.commission_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListCommissionStatusLogs 管理端佣金状态流转记录
func (h *Handler) ListCommissionStatusLogs(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	logs, err := h.CommissionService.ListStatusLogs(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "error.commission_fetch_failed", err)
		return
	}
	response.Success(c, logs)
}

// CancelOrderCommissionsRequest 订单佣金取消请求
type CancelOrderCommissionsRequest struct {
	Reason string `json:"reason"`
}

// CancelOrderCommissions 管理端按订单号取消佣金
func (h *Handler) CancelOrderCommissions(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CancelOrderCommissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.CommissionService.CancelByOrderNo(orderNo, req.Reason); err != nil {
		respondError(c, response.CodeInternal, "error.commission_cancel_failed", err)
		return
	}
	requestLog(c).Infow("admin_order_commissions_cancelled", "order_no", orderNo, "reason", req.Reason)
	response.Success(c, gin.H{"order_no": orderNo})
}
