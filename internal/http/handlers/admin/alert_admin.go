package admin

import (
	"strconv"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListAlerts 管理端人工审核告警列表
func (h *Handler) ListAlerts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.AlertListFilter{
		Kind:     strings.TrimSpace(c.Query("kind")),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := strings.TrimSpace(c.Query("resolved")); raw != "" {
		resolved := raw == "true" || raw == "1"
		filter.Resolved = &resolved
	}

	rows, total, err := h.AlertService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.alert_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ResolveAlert 管理端标记告警已处理
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.AlertService.Resolve(uint(id)); err != nil {
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}
	response.Success(c, gin.H{"id": id})
}
