package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/repository"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/gin-gonic/gin"
)

// PoolSettleRequest 奖池结算请求
type PoolSettleRequest struct {
	StatDate string `json:"stat_date" binding:"required"`
}

// SettlePool 管理端手动结算指定统计日
func (h *Handler) SettlePool(c *gin.Context) {
	var req PoolSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	settlement, err := h.PoolService.SettleDate(strings.TrimSpace(req.StatDate))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPoolDateInvalid):
			respondError(c, response.CodeBadRequest, "error.pool_date_invalid", nil)
		case errors.Is(err, service.ErrPoolAlreadySettled):
			respondError(c, response.CodeBadRequest, "error.pool_already_settled", nil)
		default:
			respondError(c, response.CodeInternal, "error.pool_settle_failed", err)
		}
		return
	}
	requestLog(c).Infow("admin_pool_settled", "stat_date", settlement.StatDate, "pool_amount", settlement.PoolAmount.String())
	response.Success(c, settlement)
}

// GetPoolRankings 管理端查询某日奖池排行
func (h *Handler) GetPoolRankings(c *gin.Context) {
	statDate := strings.TrimSpace(c.Query("stat_date"))
	stats, poolAmount, err := h.PoolService.Rankings(statDate)
	if err != nil {
		if errors.Is(err, service.ErrPoolDateInvalid) {
			respondError(c, response.CodeBadRequest, "error.pool_date_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.pool_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{
		"stat_date":   statDate,
		"pool_amount": models.NewMoneyFromDecimal(poolAmount),
		"rankings":    stats,
	})
}

// GetSecretSantaPot 管理端查询年度资金池余额
func (h *Handler) GetSecretSantaPot(c *gin.Context) {
	year, _ := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	pot, err := h.CommissionService.GetSecretSantaPot(year)
	if err != nil {
		respondError(c, response.CodeInternal, "error.pool_fetch_failed", err)
		return
	}
	if pot == nil {
		respondError(c, response.CodeNotFound, "error.secret_santa_pot_not_found", nil)
		return
	}
	response.Success(c, pot)
}

// ListPoolPayouts 管理端名次奖金列表
func (h *Handler) ListPoolPayouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	affiliateID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_id")), 10, 64)

	rows, total, err := h.PoolService.ListPoolPayouts(repository.PoolPayoutListFilter{
		StatDate:    strings.TrimSpace(c.Query("stat_date")),
		AffiliateID: uint(affiliateID),
		Status:      strings.TrimSpace(c.Query("status")),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.pool_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
