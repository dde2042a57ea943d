package public

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/constants"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/http/response"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// OrderEventItemRequest 订单行项目, 金额用字符串避免浮点精度损失
type OrderEventItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	UnitCost  string `json:"unit_cost"`
	Physical  bool   `json:"physical"`
}

// OrderEventRequest 订单事件请求
type OrderEventRequest struct {
	OrderNo       string                  `json:"order_no" binding:"required"`
	Status        string                  `json:"status" binding:"required"`
	CustomerKey   string                  `json:"customer_key"`
	AffiliateCode string                  `json:"affiliate_code"`
	Items         []OrderEventItemRequest `json:"items"`
	SelfPurchase  bool                    `json:"self_purchase"`
}

// OrderWebhook 订单 webhook 回调。
func (h *Handler) OrderWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("order_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	log.Infow("order_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
	)

	if !h.verifyWebhookSignature(c, body) {
		log.Warnw("order_webhook_signature_invalid", "client_ip", c.ClientIP())
		respondError(c, response.CodeUnauthorized, "error.webhook_signature_invalid", nil)
		return
	}

	var req OrderEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warnw("order_webhook_payload_invalid", "error", err)
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	h.ingestOrderEvent(c, req, constants.OrderEventSourceWebhook, string(body))
}

// SubmitOrderEvent 直接提交订单事件。
func (h *Handler) SubmitOrderEvent(c *gin.Context) {
	var req OrderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	h.ingestOrderEvent(c, req, constants.OrderEventSourceAPI, "")
}

func (h *Handler) ingestOrderEvent(c *gin.Context, req OrderEventRequest, source, payload string) {
	items := make([]service.OrderEventItemInput, 0, len(req.Items))
	for i := range req.Items {
		item, ok := parseOrderEventItem(req.Items[i])
		if !ok {
			respondError(c, response.CodeBadRequest, "error.order_event_invalid", nil)
			return
		}
		items = append(items, item)
	}

	event, created, err := h.OrderEventService.Ingest(service.OrderEventInput{
		OrderNo:       req.OrderNo,
		Source:        source,
		OrderStatus:   req.Status,
		CustomerKey:   req.CustomerKey,
		AffiliateCode: req.AffiliateCode,
		Items:         items,
		SelfPurchase:  req.SelfPurchase,
		Payload:       payload,
	})
	if err != nil {
		respondOrderEventIngestError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order_event_id": event.ID,
		"event_kind":     event.EventKind,
		"created":        created,
	})
}

// parseOrderEventItem 解析行项目金额, 缺省成本按 0 计
func parseOrderEventItem(req OrderEventItemRequest) (service.OrderEventItemInput, bool) {
	item := service.OrderEventItemInput{
		ProductID: strings.TrimSpace(req.ProductID),
		VariantID: strings.TrimSpace(req.VariantID),
		Quantity:  req.Quantity,
		Physical:  req.Physical,
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil {
		return item, false
	}
	item.UnitPrice = price
	item.UnitCost = decimal.Zero
	if raw := strings.TrimSpace(req.UnitCost); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return item, false
		}
		item.UnitCost = cost
	}
	return item, true
}

// verifyWebhookSignature 校验 HMAC-SHA256 签名, 未配置密钥时放行
func (h *Handler) verifyWebhookSignature(c *gin.Context, body []byte) bool {
	secret := ""
	if h.Config != nil {
		secret = strings.TrimSpace(h.Config.Security.WebhookSecret)
	}
	if secret == "" {
		requestLog(c).Warnw("order_webhook_secret_not_configured")
		return true
	}
	signature := strings.TrimSpace(c.GetHeader(webhookSignatureHeader))
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
